package resolver

import (
	"fmt"

	"dwmhost/descriptor"
	"dwmhost/symbols"

	"github.com/Moonlight-Companies/gologger/logger"
)

// matcher handles the symbols of one target module during one pass.
type matcher struct {
	module   descriptor.TargetModule
	table    *descriptor.Table
	indices  []int
	expected uint64
	offsets  OffsetWriter
	undec    symbols.Undecorator
	log      *logger.Logger

	resolved []bool // shared across the pass, indexed like table
	count    uint64
	err      error
}

func newMatcher(module descriptor.TargetModule, table *descriptor.Table, expected uint64, offsets OffsetWriter, undec symbols.Undecorator, resolved []bool, log *logger.Logger) *matcher {
	return &matcher{
		module:   module,
		table:    table,
		indices:  table.Indices(module),
		expected: expected,
		offsets:  offsets,
		undec:    undec,
		log:      log,
		resolved: resolved,
	}
}

// visit records the symbol's offset at every descriptor of the module whose
// name matches, and asks the walker to stop once all of the module's
// descriptors have been seen.
func (m *matcher) visit(sym symbols.Symbol) bool {
	full, name := m.undec.Undecorate(sym.Name)
	offset := sym.Offset()

	for _, i := range m.indices {
		if m.table.At(i).Symbol != name {
			continue
		}
		if offset == 0 {
			m.log.Debugln("Ignoring", full, "with zero offset")
			continue
		}
		if err := m.offsets.Set(i, offset); err != nil {
			m.err = fmt.Errorf("store offset for %s: %w", m.table.At(i), err)
			return false
		}
		m.log.Debugln("Matched", full, "->", fmt.Sprintf("0x%X", offset), "index", i)
		if !m.resolved[i] {
			m.resolved[i] = true
			m.count++
		}
	}

	return m.count != m.expected
}
