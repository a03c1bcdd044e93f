package symbols

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymbol_Offset(t *testing.T) {
	assert.Equal(t, uint64(0x1234), Symbol{Address: 0x180001234, ModBase: 0x180000000}.Offset())
	assert.Equal(t, uint64(100), Symbol{Address: 100}.Offset())
	assert.Zero(t, Symbol{Address: 0x10, ModBase: 0x20}.Offset())
}

func TestSearchPath(t *testing.T) {
	p := SearchPath{CacheDir: `C:\DWMBlurGlass\data\symbols`, Server: DefaultServer}
	assert.Equal(t, `SRV*C:\DWMBlurGlass\data\symbols`, p.Local())
	assert.Equal(t, `SRV*C:\DWMBlurGlass\data\symbols*https://msdl.microsoft.com/download/symbols`, p.Remote())

	p.Server = ""
	assert.Equal(t, p.Local(), p.Remote())
}

func TestWalkError_Unwrap(t *testing.T) {
	err := error(&WalkError{Module: "uDwm.dll", Err: ErrNoDebugInfo})
	assert.True(t, errors.Is(err, ErrNoDebugInfo))
	assert.Contains(t, err.Error(), "uDwm.dll")
}

func TestDemangler_Undecorate(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantFull string
		wantName string
	}{
		{"plain", "DwmFlush", "DwmFlush", "DwmFlush"},
		{"msvc method", "?ValidateVisual@CTopLevelWindow@@AEAAJXZ", "?ValidateVisual@CTopLevelWindow@@AEAAJXZ", "CTopLevelWindow::ValidateVisual"},
		{"msvc namespaced", "?Create@CCustomBlur@DwmCore@@SAJPEAUID2D1DeviceContext@@PEAPEAV12@@Z", "?Create@CCustomBlur@DwmCore@@SAJPEAUID2D1DeviceContext@@PEAPEAV12@@Z", "DwmCore::CCustomBlur::Create"},
		{"msvc ctor", "??0CTopLevelWindow@@QEAA@XZ", "??0CTopLevelWindow@@QEAA@XZ", "CTopLevelWindow::CTopLevelWindow"},
		{"msvc dtor", "??1CTopLevelWindow@@UEAA@XZ", "??1CTopLevelWindow@@UEAA@XZ", "CTopLevelWindow::~CTopLevelWindow"},
		{"msvc operator", "??_GCTopLevelWindow@@UEAAPEAXI@Z", "??_GCTopLevelWindow@@UEAAPEAXI@Z", "??_GCTopLevelWindow@@UEAAPEAXI@Z"},
		{"msvc template", "?Foo@?$Bar@H@@QEAAXXZ", "?Foo@?$Bar@H@@QEAAXXZ", "?Foo@?$Bar@H@@QEAAXXZ"},
		{"itanium", "_ZN15CTopLevelWindow14ValidateVisualEv", "CTopLevelWindow::ValidateVisual()", "CTopLevelWindow::ValidateVisual"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			full, name := Demangler{}.Undecorate(tt.in)
			assert.Equal(t, tt.wantFull, full)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestSystemLibrary(t *testing.T) {
	for _, tc := range []struct {
		path   string
		name   string
		system bool
	}{
		{"", DefaultDbgHelp, true},
		{"dbghelp.dll", "dbghelp.dll", true},
		{`C:\DWMBlurGlass\dbghelp.dll`, `C:\DWMBlurGlass\dbghelp.dll`, false},
		{"tools/dbghelp.dll", "tools/dbghelp.dll", false},
	} {
		name, system := systemLibrary(tc.path)
		assert.Equal(t, tc.name, name, tc.path)
		assert.Equal(t, tc.system, system, tc.path)
	}
}
