// Package descriptor holds the ordered list of private functions the host
// resolves and the extension reads back by index.
//
// The order of a Table is the contract between the host and the injected
// module: entry i of the shared offset table belongs to descriptor i, and no
// names cross the process boundary at runtime.
package descriptor

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/samber/lo"
)

// TargetModule identifies one of the two system libraries being searched.
type TargetModule int

const (
	ModuleDwmcore TargetModule = iota // dwmcore.dll
	ModuleUDwm                        // uDwm.dll
)

// Modules lists the target modules in the order a resolution pass walks them.
var Modules = []TargetModule{ModuleDwmcore, ModuleUDwm}

// FileName returns the on-disk file name of the module.
func (m TargetModule) FileName() string {
	switch m {
	case ModuleDwmcore:
		return "dwmcore.dll"
	case ModuleUDwm:
		return "uDwm.dll"
	default:
		return ""
	}
}

// String returns the short form used in descriptor files.
func (m TargetModule) String() string {
	switch m {
	case ModuleDwmcore:
		return "dwmcore"
	case ModuleUDwm:
		return "udwm"
	default:
		return fmt.Sprintf("module(%d)", int(m))
	}
}

// ParseModule accepts the short form ("dwmcore") or the file name ("dwmcore.dll"), case-insensitively.
func ParseModule(s string) (TargetModule, error) {
	name := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), ".dll")
	for _, m := range Modules {
		if name == m.String() {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown target module %q", s)
}

// HookDescriptor names one function to locate.
type HookDescriptor struct {
	Module TargetModule
	Symbol string // name-only undecorated form, e.g. "CTopLevelWindow::ValidateVisual"
}

func (d HookDescriptor) String() string {
	return d.Module.String() + "!" + d.Symbol
}

// Counts holds the number of descriptors per target module.
type Counts struct {
	Dwmcore uint64
	UDwm    uint64
}

// For returns the count for module m.
func (c Counts) For(m TargetModule) uint64 {
	switch m {
	case ModuleDwmcore:
		return c.Dwmcore
	case ModuleUDwm:
		return c.UDwm
	default:
		return 0
	}
}

// Table is an immutable, ordered descriptor list.
type Table struct {
	entries []HookDescriptor
}

// New copies entries into a Table after validating them.
func New(entries []HookDescriptor) (*Table, error) {
	for i, d := range entries {
		if d.Module.FileName() == "" {
			return nil, fmt.Errorf("descriptor %d: invalid module %d", i, int(d.Module))
		}
		if strings.TrimSpace(d.Symbol) == "" {
			return nil, fmt.Errorf("descriptor %d: empty symbol", i)
		}
	}
	return &Table{entries: append([]HookDescriptor(nil), entries...)}, nil
}

// MustNew is New for compiled-in tables.
func MustNew(entries []HookDescriptor) *Table {
	t, err := New(entries)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of descriptors.
func (t *Table) Len() int {
	return len(t.entries)
}

// At returns descriptor i.
func (t *Table) At(i int) HookDescriptor {
	return t.entries[i]
}

// Indices returns the table indices that belong to module m, in order.
func (t *Table) Indices(m TargetModule) []int {
	return lo.FilterMap(t.entries, func(d HookDescriptor, i int) (int, bool) {
		return i, d.Module == m
	})
}

// ExpectedCounts counts descriptors per module.
func (t *Table) ExpectedCounts() Counts {
	return Counts{
		Dwmcore: uint64(lo.CountBy(t.entries, func(d HookDescriptor) bool { return d.Module == ModuleDwmcore })),
		UDwm:    uint64(lo.CountBy(t.entries, func(d HookDescriptor) bool { return d.Module == ModuleUDwm })),
	}
}

// Fingerprint hashes the ordered entries. Two builds agree on the table
// layout only if their fingerprints match.
func (t *Table) Fingerprint() uint32 {
	h := fnv.New32a()
	for _, d := range t.entries {
		fmt.Fprintf(h, "%d:%s\x00", int(d.Module), d.Symbol)
	}
	return h.Sum32()
}
