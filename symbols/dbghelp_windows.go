//go:build windows

package symbols

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	"dwmhost/coloransi"

	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/windows"
)

const (
	symoptFailCriticalErrors = 0x00000200
	symoptPublicsOnly        = 0x00004000
	symoptNoPrompts          = 0x00080000

	undnameComplete           = 0x0000
	undnameNoAccessSpecifiers = 0x0080
	undnameNoThrowSignatures  = 0x0100
	undnameNameOnly           = 0x1000
	maxUndecoratedName        = 260
	symTypePdb                = 3
)

// dbghelp is single threaded; one walk at a time per process.
var (
	dbghelpMu    sync.Mutex
	activeVisit  func(*symbolInfoW) bool
	enumCallback = windows.NewCallback(enumSymbolsProc)
)

type symbolInfoW struct {
	SizeOfStruct uint32
	TypeIndex    uint32
	Reserved     [2]uint64
	Index        uint32
	Size         uint32
	ModBase      uint64
	Flags        uint32
	Value        uint64
	Address      uint64
	Register     uint32
	Scope        uint32
	Tag          uint32
	NameLen      uint32
	MaxNameLen   uint32
	Name         [1]uint16
}

type imagehlpModuleW64 struct {
	SizeOfStruct    uint32
	BaseOfImage     uint64
	ImageSize       uint32
	TimeDateStamp   uint32
	CheckSum        uint32
	NumSyms         uint32
	SymType         uint32
	ModuleName      [32]uint16
	ImageName       [256]uint16
	LoadedImageName [256]uint16
	LoadedPdbName   [256]uint16
	CVSig           uint32
	CVData          [windows.MAX_PATH * 3]uint16
	PdbSig          uint32
	PdbSig70        windows.GUID
	PdbAge          uint32
	PdbUnmatched    int32
	DbgUnmatched    int32
	LineNumbers     int32
	GlobalSymbols   int32
	TypeInfo        int32
	SourceIndexed   int32
	Publics         int32
	MachineType     uint32
	Reserved        uint32
}

func enumSymbolsProc(info *symbolInfoW, _ uint32, _ uintptr) uintptr {
	if activeVisit == nil || activeVisit(info) {
		return 1
	}
	return 0
}

// DbgHelp walks module symbols with the Debug Help Library, downloading PDBs
// through symsrv when the search path names a server.
type DbgHelp struct {
	log       *logger.Logger
	systemDir string
	process   windows.Handle

	dll                  *windows.LazyDLL
	procSymSetOptions    *windows.LazyProc
	procSymInitializeW   *windows.LazyProc
	procSymCleanup       *windows.LazyProc
	procSymSetSearchPath *windows.LazyProc
	procSymLoadModuleEx  *windows.LazyProc
	procSymUnloadModule  *windows.LazyProc
	procSymGetModuleInfo *windows.LazyProc
	procSymEnumSymbols   *windows.LazyProc
	procUnDecorate       *windows.LazyProc

	once    sync.Once
	initErr error
}

// NewDbgHelp loads dbghelp.dll from dllPath, or from System32 when dllPath is
// empty or a bare file name. A dbghelp.dll shipped next to symsrv.dll is
// needed for downloads.
func NewDbgHelp(dllPath string) *DbgHelp {
	var dll *windows.LazyDLL
	if name, ok := systemLibrary(dllPath); ok {
		dll = windows.NewLazySystemDLL(name)
	} else {
		dll = windows.NewLazyDLL(dllPath)
	}
	return &DbgHelp{
		log:                  logger.NewLogger(coloransi.Color(coloransi.ColorCyan, coloransi.ColorOrange, "dbghelp")),
		process:              windows.CurrentProcess(),
		dll:                  dll,
		procSymSetOptions:    dll.NewProc("SymSetOptions"),
		procSymInitializeW:   dll.NewProc("SymInitializeW"),
		procSymCleanup:       dll.NewProc("SymCleanup"),
		procSymSetSearchPath: dll.NewProc("SymSetSearchPathW"),
		procSymLoadModuleEx:  dll.NewProc("SymLoadModuleExW"),
		procSymUnloadModule:  dll.NewProc("SymUnloadModule64"),
		procSymGetModuleInfo: dll.NewProc("SymGetModuleInfoW64"),
		procSymEnumSymbols:   dll.NewProc("SymEnumSymbolsW"),
		procUnDecorate:       dll.NewProc("UnDecorateSymbolNameW"),
	}
}

// NewWalker returns the platform symbol walker.
func NewWalker(dllPath string) (Walker, error) {
	return NewDbgHelp(dllPath), nil
}

// NewUndecorator returns the platform undecorator.
func NewUndecorator(dllPath string) Undecorator {
	return NewDbgHelp(dllPath)
}

func (d *DbgHelp) init() error {
	d.once.Do(func() {
		if err := d.dll.Load(); err != nil {
			d.initErr = fmt.Errorf("load dbghelp: %w", err)
			return
		}
		dir, err := windows.GetSystemDirectory()
		if err != nil {
			d.initErr = fmt.Errorf("system directory: %w", err)
			return
		}
		d.systemDir = dir

		d.procSymSetOptions.Call(uintptr(symoptFailCriticalErrors | symoptPublicsOnly | symoptNoPrompts))
		if r, _, err := d.procSymInitializeW.Call(uintptr(d.process), 0, 0); r == 0 {
			d.initErr = fmt.Errorf("SymInitializeW failed: %v", err)
		}
	})
	return d.initErr
}

// Close releases the dbghelp session.
func (d *DbgHelp) Close() error {
	dbghelpMu.Lock()
	defer dbghelpMu.Unlock()

	if d.initErr != nil || d.systemDir == "" {
		return nil
	}
	if r, _, err := d.procSymCleanup.Call(uintptr(d.process)); r == 0 {
		return fmt.Errorf("SymCleanup failed: %v", err)
	}
	d.systemDir = ""
	return nil
}

func (d *DbgHelp) Walk(ctx context.Context, module, pattern, searchPath string, fn VisitFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dbghelpMu.Lock()
	defer dbghelpMu.Unlock()

	if err := d.init(); err != nil {
		return &WalkError{Module: module, Err: err}
	}
	if err := d.walk(module, pattern, searchPath, fn); err != nil {
		return &WalkError{Module: module, Err: err}
	}
	return nil
}

func (d *DbgHelp) walk(module, pattern, searchPath string, fn VisitFunc) error {
	if searchPath != "" {
		p, err := windows.UTF16PtrFromString(searchPath)
		if err != nil {
			return err
		}
		if r, _, err := d.procSymSetSearchPath.Call(uintptr(d.process), uintptr(unsafe.Pointer(p))); r == 0 {
			return fmt.Errorf("SymSetSearchPathW failed: %v", err)
		}
	}

	image := filepath.Join(d.systemDir, module)
	imagePtr, err := windows.UTF16PtrFromString(image)
	if err != nil {
		return err
	}
	base, _, lerr := d.procSymLoadModuleEx.Call(uintptr(d.process), 0, uintptr(unsafe.Pointer(imagePtr)), 0, 0, 0, 0, 0)
	if base == 0 {
		return fmt.Errorf("SymLoadModuleExW %s failed: %v", image, lerr)
	}
	defer d.procSymUnloadModule.Call(uintptr(d.process), base)

	d.log.Debugln("Loaded", image, "at", fmt.Sprintf("0x%X", base))

	var info imagehlpModuleW64
	info.SizeOfStruct = uint32(unsafe.Sizeof(info))
	if r, _, err := d.procSymGetModuleInfo.Call(uintptr(d.process), base, uintptr(unsafe.Pointer(&info))); r == 0 {
		return fmt.Errorf("SymGetModuleInfoW64 failed: %v", err)
	}
	if info.SymType != symTypePdb {
		return fmt.Errorf("%s: %w (symbol type %d)", module, ErrNoDebugInfo, info.SymType)
	}
	d.log.Debugln("Using symbols from", windows.UTF16ToString(info.LoadedPdbName[:]))

	mask, err := windows.UTF16PtrFromString(pattern)
	if err != nil {
		return err
	}
	// a "module!symbol" mask is only honoured with a zero base; only one module is loaded at a time
	enumBase := base
	if strings.Contains(pattern, "!") {
		enumBase = 0
	}

	stopped := false
	activeVisit = func(si *symbolInfoW) bool {
		name := unsafe.Slice(&si.Name[0], si.NameLen)
		keep := fn(Symbol{
			Name:    windows.UTF16ToString(name),
			Address: si.Address,
			ModBase: si.ModBase,
			Size:    si.Size,
		})
		stopped = !keep
		return keep
	}
	defer func() { activeVisit = nil }()

	r, _, eerr := d.procSymEnumSymbols.Call(uintptr(d.process), enumBase, uintptr(unsafe.Pointer(mask)), enumCallback, 0)
	if r == 0 && !stopped {
		return fmt.Errorf("SymEnumSymbolsW failed: %v", eerr)
	}
	return nil
}

// Undecorate runs UnDecorateSymbolNameW twice: once complete, once name-only.
// Names dbghelp cannot parse are returned unchanged.
func (d *DbgHelp) Undecorate(decorated string) (string, string) {
	if err := d.dll.Load(); err != nil {
		return Demangler{}.Undecorate(decorated)
	}
	full := d.undecorate(decorated, undnameComplete|undnameNoAccessSpecifiers|undnameNoThrowSignatures)
	return full, d.undecorate(decorated, undnameNameOnly)
}

func (d *DbgHelp) undecorate(name string, flags uint32) string {
	in, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return name
	}
	var out [maxUndecoratedName + 1]uint16
	n, _, _ := d.procUnDecorate.Call(uintptr(unsafe.Pointer(in)), uintptr(unsafe.Pointer(&out[0])), maxUndecoratedName, uintptr(flags))
	if n == 0 {
		return name
	}
	return windows.UTF16ToString(out[:n])
}
