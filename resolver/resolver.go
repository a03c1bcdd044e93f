// Package resolver finds the module-relative offsets of the descriptor table's
// functions and publishes them to the shared offset table.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"dwmhost/coloransi"
	"dwmhost/descriptor"
	"dwmhost/symbols"

	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/hashicorp/go-multierror"
)

// ErrUnresolved is returned in strict mode when a walk succeeded but some
// descriptors were not found in the module's symbols.
var ErrUnresolved = errors.New("unresolved hook descriptors")

// OffsetWriter is the writer side of the shared offset table.
type OffsetWriter interface {
	BeginPass(counts descriptor.Counts, fingerprint uint32) error
	Set(i int, offset uint64) error
	Reset() error
	EndPass() error
}

// Options configures a Resolver.
type Options struct {
	// SearchPath locates symbol files. Resolution only reads the local cache.
	SearchPath symbols.SearchPath

	// Pattern is passed to the walker; defaults to symbols.DefaultPattern.
	Pattern string

	// Strict fails a pass that left any descriptor unresolved.
	Strict bool
}

// ModuleReport summarizes one module of a pass.
type ModuleReport struct {
	Module   descriptor.TargetModule
	Expected uint64
	Resolved uint64
}

// Report summarizes a resolution pass.
type Report struct {
	Modules []ModuleReport
	Missing []descriptor.HookDescriptor
}

// Resolver runs resolution passes.
type Resolver struct {
	table   *descriptor.Table
	offsets OffsetWriter
	walker  symbols.Walker
	undec   symbols.Undecorator
	opts    Options
	log     *logger.Logger
}

// New creates a Resolver.
func New(table *descriptor.Table, offsets OffsetWriter, walker symbols.Walker, undec symbols.Undecorator, opts Options) *Resolver {
	if opts.Pattern == "" {
		opts.Pattern = symbols.DefaultPattern
	}
	if undec == nil {
		undec = symbols.Demangler{}
	}
	return &Resolver{
		table:   table,
		offsets: offsets,
		walker:  walker,
		undec:   undec,
		opts:    opts,
		log:     logger.NewLogger(coloransi.Color(coloransi.ColorYellow, coloransi.ColorOrange, "resolver")),
	}
}

// Table returns the descriptor table being resolved.
func (r *Resolver) Table() *descriptor.Table {
	return r.table
}

// ResolveAll zeroes the offset table and repopulates it from both target
// modules. A failed walk aborts the pass before the next module is walked.
// On any failure the table is left zeroed, never partially populated.
func (r *Resolver) ResolveAll(ctx context.Context) (*Report, error) {
	counts := r.table.ExpectedCounts()
	r.log.Infoln("Resolving", r.table.Len(), "hooks (dwmcore:", counts.Dwmcore, "udwm:", counts.UDwm, ")")

	if err := r.offsets.BeginPass(counts, r.table.Fingerprint()); err != nil {
		return nil, fmt.Errorf("begin resolution pass: %w", err)
	}

	report, err := r.resolve(ctx, counts)
	if err != nil {
		if rerr := r.offsets.Reset(); rerr != nil {
			r.log.Warn("Failed to clear offset table: ", rerr)
		}
	}
	if eerr := r.offsets.EndPass(); eerr != nil && err == nil {
		err = fmt.Errorf("end resolution pass: %w", eerr)
	}
	if err != nil {
		r.log.Warn("Resolution failed: ", err)
		return report, err
	}

	r.log.Infoln("Resolution complete")
	return report, nil
}

func (r *Resolver) resolve(ctx context.Context, counts descriptor.Counts) (*Report, error) {
	report := &Report{}
	resolved := make([]bool, r.table.Len())

	for _, module := range descriptor.Modules {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		expected := counts.For(module)
		m := newMatcher(module, r.table, expected, r.offsets, r.undec, resolved, r.log)

		err := r.walker.Walk(ctx, module.FileName(), r.opts.Pattern, r.opts.SearchPath.Local(), m.visit)
		if err == nil {
			err = m.err
		}
		if err != nil {
			return report, fmt.Errorf("resolve %s: %w", module.FileName(), err)
		}

		r.log.Infoln("Resolved", m.count, "of", expected, "hooks in", module.FileName())
		report.Modules = append(report.Modules, ModuleReport{Module: module, Expected: expected, Resolved: m.count})
	}

	var merr *multierror.Error
	for i, ok := range resolved {
		if ok {
			continue
		}
		d := r.table.At(i)
		report.Missing = append(report.Missing, d)
		merr = multierror.Append(merr, fmt.Errorf("%s not found (index %d)", d, i))
	}

	if len(report.Missing) > 0 {
		if r.opts.Strict {
			return report, fmt.Errorf("%w: %w", ErrUnresolved, merr.ErrorOrNil())
		}
		r.log.Warn("Unresolved hooks: ", merr.ErrorOrNil())
	}
	return report, nil
}

// SymbolState reports whether both modules' symbols can be loaded from the
// local cache without downloading.
func (r *Resolver) SymbolState(ctx context.Context) error {
	return r.probe(ctx, r.opts.SearchPath.Local())
}

// Prefetch downloads both modules' symbols into the local cache. It does not
// touch the offset table.
func (r *Resolver) Prefetch(ctx context.Context) error {
	r.log.Infoln("Downloading symbols into", r.opts.SearchPath.CacheDir)
	return r.probe(ctx, r.opts.SearchPath.Remote())
}

func (r *Resolver) probe(ctx context.Context, searchPath string) error {
	stop := func(symbols.Symbol) bool { return false }
	for _, module := range descriptor.Modules {
		if err := r.walker.Walk(ctx, module.FileName(), r.opts.Pattern, searchPath, stop); err != nil {
			return fmt.Errorf("load symbols of %s: %w", module.FileName(), err)
		}
	}
	return nil
}
