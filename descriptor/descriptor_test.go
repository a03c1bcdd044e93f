package descriptor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModule(t *testing.T) {
	tests := []struct {
		in      string
		want    TargetModule
		wantErr bool
	}{
		{"dwmcore", ModuleDwmcore, false},
		{"dwmcore.dll", ModuleDwmcore, false},
		{"uDwm.dll", ModuleUDwm, false},
		{" UDWM ", ModuleUDwm, false},
		{"user32", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseModule(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTable_ExpectedCountsAndIndices(t *testing.T) {
	table := MustNew([]HookDescriptor{
		{ModuleDwmcore, "Foo"},
		{ModuleDwmcore, "Bar"},
		{ModuleUDwm, "Baz"},
	})

	counts := table.ExpectedCounts()
	assert.Equal(t, uint64(2), counts.Dwmcore)
	assert.Equal(t, uint64(1), counts.UDwm)
	assert.Equal(t, uint64(2), counts.For(ModuleDwmcore))

	assert.Equal(t, []int{0, 1}, table.Indices(ModuleDwmcore))
	assert.Equal(t, []int{2}, table.Indices(ModuleUDwm))
}

func TestNew_RejectsInvalidEntries(t *testing.T) {
	_, err := New([]HookDescriptor{{ModuleDwmcore, " "}})
	assert.Error(t, err)

	_, err = New([]HookDescriptor{{TargetModule(7), "Foo"}})
	assert.Error(t, err)
}

func TestTable_FingerprintDependsOnOrder(t *testing.T) {
	a := MustNew([]HookDescriptor{{ModuleDwmcore, "Foo"}, {ModuleUDwm, "Bar"}})
	b := MustNew([]HookDescriptor{{ModuleUDwm, "Bar"}, {ModuleDwmcore, "Foo"}})
	c := MustNew([]HookDescriptor{{ModuleDwmcore, "Foo"}, {ModuleUDwm, "Bar"}})

	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.Equal(t, a.Fingerprint(), c.Fingerprint())
}

func TestDefault_HasBothModules(t *testing.T) {
	counts := Default().ExpectedCounts()
	assert.NotZero(t, counts.Dwmcore)
	assert.NotZero(t, counts.UDwm)
}

func TestLoad_RoundTripsDefault(t *testing.T) {
	data, err := Marshal(Default())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "hooks.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), loaded)
	assert.Equal(t, Default().Fingerprint(), loaded.Fingerprint())
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("hooks: []\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("hooks:\n  - module: gdi32\n    symbol: Foo\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("hooks:\n  - module: udwm\n    symbol: Foo\n    extra: 1\n"))
	assert.Error(t, err)
}
