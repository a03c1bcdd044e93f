package resolver

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"dwmhost/descriptor"
	"dwmhost/offsettable"
	"dwmhost/symbols"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWalker replays a fixed symbol list per module.
type fakeWalker struct {
	symbols map[string][]symbols.Symbol
	fail    map[string]error

	walked      []string
	searchPaths []string
	visited     map[string]int
}

func (w *fakeWalker) Walk(_ context.Context, module, _, searchPath string, fn symbols.VisitFunc) error {
	w.walked = append(w.walked, module)
	w.searchPaths = append(w.searchPaths, searchPath)
	if err := w.fail[module]; err != nil {
		return &symbols.WalkError{Module: module, Err: err}
	}
	if w.visited == nil {
		w.visited = map[string]int{}
	}
	for _, s := range w.symbols[module] {
		w.visited[module]++
		if !fn(s) {
			break
		}
	}
	return nil
}

var scenarioTable = descriptor.MustNew([]descriptor.HookDescriptor{
	{Module: descriptor.ModuleDwmcore, Symbol: "Foo"},
	{Module: descriptor.ModuleDwmcore, Symbol: "Bar"},
	{Module: descriptor.ModuleUDwm, Symbol: "Baz"},
})

func scenarioWalker() *fakeWalker {
	return &fakeWalker{
		symbols: map[string][]symbols.Symbol{
			"dwmcore.dll": {{Name: "Foo", Address: 100}, {Name: "Bar", Address: 200}},
			"uDwm.dll":    {{Name: "Baz", Address: 50}},
		},
	}
}

func newOffsets(t *testing.T, n int) *offsettable.Table {
	t.Helper()
	tbl, err := offsettable.Create(filepath.Join(t.TempDir(), "offsets.bin"), n)
	require.NoError(t, err)
	t.Cleanup(func() { tbl.Close() })
	return tbl
}

func snapshot(t *testing.T, tbl *offsettable.Table) []uint64 {
	t.Helper()
	entries, _, ok := tbl.Snapshot()
	require.True(t, ok)
	return entries
}

func TestResolveAll_Scenario(t *testing.T) {
	offsets := newOffsets(t, scenarioTable.Len())
	r := New(scenarioTable, offsets, scenarioWalker(), nil, Options{Strict: true})

	report, err := r.ResolveAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Missing)
	assert.Equal(t, []uint64{100, 200, 50}, snapshot(t, offsets))
	assert.Equal(t, scenarioTable.Fingerprint(), offsets.Fingerprint())
	assert.Equal(t, scenarioTable.ExpectedCounts(), offsets.Expected())
}

func TestResolveAll_SecondModuleFailure(t *testing.T) {
	offsets := newOffsets(t, scenarioTable.Len())
	w := scenarioWalker()
	w.fail = map[string]error{"uDwm.dll": errors.New("symbol server unreachable")}
	r := New(scenarioTable, offsets, w, nil, Options{Strict: true})

	_, err := r.ResolveAll(context.Background())
	require.Error(t, err)

	var werr *symbols.WalkError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "uDwm.dll", werr.Module)

	// the half-populated [100, 200, 0] table is never published
	assert.Equal(t, []uint64{0, 0, 0}, snapshot(t, offsets))
	assert.Zero(t, offsets.Generation()%2, "pass must be closed")
}

func TestResolveAll_FirstModuleFailureSkipsSecond(t *testing.T) {
	offsets := newOffsets(t, scenarioTable.Len())
	w := scenarioWalker()
	w.fail = map[string]error{"dwmcore.dll": errors.New("cannot open module")}
	r := New(scenarioTable, offsets, w, nil, Options{})

	_, err := r.ResolveAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"dwmcore.dll"}, w.walked)
	assert.Equal(t, []uint64{0, 0, 0}, snapshot(t, offsets))
}

func TestResolveAll_OffsetIsAddressMinusBase(t *testing.T) {
	offsets := newOffsets(t, scenarioTable.Len())
	w := &fakeWalker{symbols: map[string][]symbols.Symbol{
		"dwmcore.dll": {
			{Name: "Foo", Address: 0x180012340, ModBase: 0x180000000},
			{Name: "Bar", Address: 0x180056780, ModBase: 0x180000000},
		},
		"uDwm.dll": {{Name: "Baz", Address: 0x10002000, ModBase: 0x10000000}},
	}}
	r := New(scenarioTable, offsets, w, nil, Options{Strict: true})

	_, err := r.ResolveAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{0x12340, 0x56780, 0x2000}, snapshot(t, offsets))
}

func TestResolveAll_StopsWhenModuleComplete(t *testing.T) {
	offsets := newOffsets(t, scenarioTable.Len())
	w := &fakeWalker{symbols: map[string][]symbols.Symbol{
		"dwmcore.dll": {
			{Name: "Noise", Address: 10},
			{Name: "Foo", Address: 100},
			{Name: "Bar", Address: 200},
			{Name: "Tail1", Address: 300},
			{Name: "Tail2", Address: 400},
		},
		"uDwm.dll": {{Name: "Baz", Address: 50}, {Name: "Tail", Address: 60}},
	}}
	r := New(scenarioTable, offsets, w, nil, Options{Strict: true})

	_, err := r.ResolveAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, w.visited["dwmcore.dll"])
	assert.Equal(t, 1, w.visited["uDwm.dll"])
}

func TestResolveAll_ContinuesAfterNonMatches(t *testing.T) {
	offsets := newOffsets(t, scenarioTable.Len())
	w := scenarioWalker()
	w.symbols["dwmcore.dll"] = []symbols.Symbol{
		{Name: "A", Address: 1}, {Name: "B", Address: 2}, {Name: "Bar", Address: 200}, {Name: "C", Address: 3}, {Name: "Foo", Address: 100},
	}
	r := New(scenarioTable, offsets, w, nil, Options{Strict: true})

	_, err := r.ResolveAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{100, 200, 50}, snapshot(t, offsets))
}

func TestResolveAll_ZeroExpectedModuleIsNeverWritten(t *testing.T) {
	table := descriptor.MustNew([]descriptor.HookDescriptor{
		{Module: descriptor.ModuleUDwm, Symbol: "Foo"},
		{Module: descriptor.ModuleUDwm, Symbol: "Bar"},
	})
	offsets := newOffsets(t, table.Len())
	w := &fakeWalker{symbols: map[string][]symbols.Symbol{
		// same names under the other module must not leak into the table
		"dwmcore.dll": {{Name: "Foo", Address: 999}, {Name: "Bar", Address: 998}},
		"uDwm.dll":    {{Name: "Foo", Address: 10}, {Name: "Bar", Address: 20}},
	}}
	r := New(table, offsets, w, nil, Options{Strict: true})

	_, err := r.ResolveAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 20}, snapshot(t, offsets))
	assert.Equal(t, []string{"dwmcore.dll", "uDwm.dll"}, w.walked)
}

func TestResolveAll_DuplicateDescriptorsShareOffset(t *testing.T) {
	table := descriptor.MustNew([]descriptor.HookDescriptor{
		{Module: descriptor.ModuleDwmcore, Symbol: "Foo"},
		{Module: descriptor.ModuleDwmcore, Symbol: "Foo"},
		{Module: descriptor.ModuleUDwm, Symbol: "Baz"},
	})
	offsets := newOffsets(t, table.Len())
	r := New(table, offsets, scenarioWalker(), nil, Options{Strict: true})

	_, err := r.ResolveAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{100, 100, 50}, snapshot(t, offsets))
}

func TestResolveAll_MissingSymbol(t *testing.T) {
	w := scenarioWalker()
	w.symbols["uDwm.dll"] = []symbols.Symbol{{Name: "Other", Address: 5}}

	t.Run("strict", func(t *testing.T) {
		offsets := newOffsets(t, scenarioTable.Len())
		r := New(scenarioTable, offsets, w, nil, Options{Strict: true})

		report, err := r.ResolveAll(context.Background())
		require.ErrorIs(t, err, ErrUnresolved)
		assert.Contains(t, err.Error(), "udwm!Baz")
		require.Len(t, report.Missing, 1)
		assert.Equal(t, "Baz", report.Missing[0].Symbol)
		assert.Equal(t, []uint64{0, 0, 0}, snapshot(t, offsets))
	})

	t.Run("lenient", func(t *testing.T) {
		offsets := newOffsets(t, scenarioTable.Len())
		r := New(scenarioTable, offsets, w, nil, Options{})

		report, err := r.ResolveAll(context.Background())
		require.NoError(t, err)
		require.Len(t, report.Missing, 1)
		assert.Equal(t, []uint64{100, 200, 0}, snapshot(t, offsets))
	})
}

func TestResolveAll_Idempotent(t *testing.T) {
	offsets := newOffsets(t, scenarioTable.Len())
	r := New(scenarioTable, offsets, scenarioWalker(), nil, Options{Strict: true})

	_, err := r.ResolveAll(context.Background())
	require.NoError(t, err)
	first := snapshot(t, offsets)
	firstRaw := offsets.Bytes()

	_, err = r.ResolveAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, snapshot(t, offsets))

	// only the generation word differs between the two regions
	secondRaw := offsets.Bytes()
	copy(firstRaw[8:16], secondRaw[8:16])
	assert.Equal(t, firstRaw, secondRaw)
}

func TestResolveAll_UndecoratesBeforeMatching(t *testing.T) {
	table := descriptor.MustNew([]descriptor.HookDescriptor{
		{Module: descriptor.ModuleUDwm, Symbol: "CTopLevelWindow::ValidateVisual"},
		{Module: descriptor.ModuleUDwm, Symbol: "CTopLevelWindow::~CTopLevelWindow"},
	})
	offsets := newOffsets(t, table.Len())
	w := &fakeWalker{symbols: map[string][]symbols.Symbol{
		"dwmcore.dll": {{Name: "?Unrelated@@YAXXZ", Address: 1}},
		"uDwm.dll": {
			{Name: "?ValidateVisual@CTopLevelWindow@@AEAAJXZ", Address: 0x1000},
			{Name: "??1CTopLevelWindow@@UEAA@XZ", Address: 0x2000},
		},
	}}
	r := New(table, offsets, w, symbols.Demangler{}, Options{Strict: true})

	_, err := r.ResolveAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{0x1000, 0x2000}, snapshot(t, offsets))
}

func TestResolveAll_UsesLocalSearchPath(t *testing.T) {
	offsets := newOffsets(t, scenarioTable.Len())
	w := scenarioWalker()
	sp := symbols.SearchPath{CacheDir: "/cache", Server: symbols.DefaultServer}
	r := New(scenarioTable, offsets, w, nil, Options{SearchPath: sp})

	_, err := r.ResolveAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{sp.Local(), sp.Local()}, w.searchPaths)
}

func TestResolveAll_CancelledContext(t *testing.T) {
	offsets := newOffsets(t, scenarioTable.Len())
	w := scenarioWalker()
	r := New(scenarioTable, offsets, w, nil, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.ResolveAll(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, w.walked)
}

func TestSymbolStateAndPrefetch(t *testing.T) {
	sp := symbols.SearchPath{CacheDir: "/cache", Server: symbols.DefaultServer}
	offsets := newOffsets(t, scenarioTable.Len())

	w := scenarioWalker()
	r := New(scenarioTable, offsets, w, nil, Options{SearchPath: sp})

	require.NoError(t, r.SymbolState(context.Background()))
	require.NoError(t, r.Prefetch(context.Background()))
	assert.Equal(t, []string{sp.Local(), sp.Local(), sp.Remote(), sp.Remote()}, w.searchPaths)
	assert.Equal(t, 2, w.visited["dwmcore.dll"], "probes stop at the first symbol")
	assert.Zero(t, offsets.Generation(), "probes never open a pass")

	w.fail = map[string]error{"dwmcore.dll": symbols.ErrNoDebugInfo}
	assert.ErrorIs(t, r.SymbolState(context.Background()), symbols.ErrNoDebugInfo)
}
