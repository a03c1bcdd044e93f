// Package symbols enumerates debug symbols of the target modules and turns
// decorated names into comparable ones.
package symbols

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultPattern matches every symbol of the module being walked.
const DefaultPattern = "*!*"

// DefaultDbgHelp is the symbol engine library shipped with Windows.
const DefaultDbgHelp = "dbghelp.dll"

// DefaultServer is the public Microsoft symbol server.
const DefaultServer = "https://msdl.microsoft.com/download/symbols"

var (
	// ErrUnsupported is returned by walkers on platforms without a symbol engine.
	ErrUnsupported = errors.New("symbol enumeration not supported on this platform")

	// ErrNoDebugInfo is returned when a module loaded but only export symbols were found.
	ErrNoDebugInfo = errors.New("no debug symbols available")
)

// Symbol is one enumerated symbol record.
type Symbol struct {
	Name    string // decorated name as stored in the symbol file
	Address uint64 // virtual address under the base the module was loaded at
	ModBase uint64 // base the module was loaded at
	Size    uint32
}

// Offset returns the module-relative address, or 0 if Address lies below ModBase.
func (s Symbol) Offset() uint64 {
	if s.Address < s.ModBase {
		return 0
	}
	return s.Address - s.ModBase
}

// VisitFunc is called once per symbol. Returning false stops the walk.
type VisitFunc func(Symbol) bool

// Walker enumerates the symbols of a module matching pattern, using
// searchPath to locate symbol files. An empty searchPath uses the engine's
// default path.
type Walker interface {
	Walk(ctx context.Context, module, pattern, searchPath string, fn VisitFunc) error
}

// WalkError reports a failed walk of one module.
type WalkError struct {
	Module string
	Err    error
}

func (e *WalkError) Error() string {
	return fmt.Sprintf("walk symbols of %s: %v", e.Module, e.Err)
}

func (e *WalkError) Unwrap() error {
	return e.Err
}

// SearchPath builds symbol-server style search paths rooted at a local cache.
type SearchPath struct {
	CacheDir string
	Server   string
}

// Local returns a path that only consults the local cache.
func (p SearchPath) Local() string {
	return "SRV*" + p.CacheDir
}

// Remote returns a path that downloads missing files from the server into the cache.
func (p SearchPath) Remote() string {
	if p.Server == "" {
		return p.Local()
	}
	return "SRV*" + p.CacheDir + "*" + p.Server
}

// systemLibrary reports whether path names a library by file name alone. Such
// a library is loaded from the system directory, never through the DLL search
// order.
func systemLibrary(path string) (string, bool) {
	if path == "" {
		return DefaultDbgHelp, true
	}
	if strings.ContainsAny(path, `\/:`) {
		return path, false
	}
	return path, true
}
