// Package inject loads and unloads the extension module inside a target
// process.
package inject

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"dwmhost/process"
)

var (
	// ErrUnsupported is returned on platforms without remote module loading.
	ErrUnsupported = errors.New("module injection is not supported on this platform")

	// ErrNotLoaded is returned by UnInject when the module is not loaded in the target.
	ErrNotLoaded = errors.New("module not loaded in target")

	// ErrRemoteTimeout is returned when a remote load or unload did not finish
	// in time. The remote thread may still complete afterwards.
	ErrRemoteTimeout = errors.New("remote thread did not finish in time")
)

// Injector loads a module into, or unloads it from, a running process.
type Injector interface {
	Inject(ctx context.Context, pid process.ProcessID, modulePath string) error
	UnInject(ctx context.Context, pid process.ProcessID, modulePath string) error

	// Loaded reports whether modulePath is currently loaded in pid.
	Loaded(ctx context.Context, pid process.ProcessID, modulePath string) (bool, error)
}

// Error is an injection failure. Its message is shown to the user unchanged.
type Error struct {
	Op   string // "inject" or "uninject"
	PID  process.ProcessID
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s (pid %d): %v", e.Op, filepath.Base(e.Path), e.PID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CheckModule verifies that modulePath names an existing regular file and
// returns its absolute form, which is what the target process will load.
func CheckModule(modulePath string) (string, error) {
	abs, err := filepath.Abs(modulePath)
	if err != nil {
		return "", fmt.Errorf("resolve module path: %w", err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("extension module: %w", err)
	}
	if !st.Mode().IsRegular() {
		return "", fmt.Errorf("extension module %s is not a file", abs)
	}
	return abs, nil
}

// confirm settles a remote load (want true) or unload (want false) from the
// target's module list. The remote thread's exit code is not trusted: for
// LoadLibraryW it is a truncated HMODULE, and after a timeout there is none.
func confirm(runErr error, want bool, loaded func() (bool, error)) error {
	if runErr != nil && !errors.Is(runErr, ErrRemoteTimeout) {
		return runErr
	}
	ok, err := loaded()
	switch {
	case err != nil && runErr != nil:
		return runErr
	case err != nil:
		return fmt.Errorf("inspect target modules: %w", err)
	case ok == want:
		return nil
	case runErr != nil:
		return runErr
	case want:
		return errors.New("LoadLibraryW failed in target")
	default:
		return errors.New("FreeLibrary left the module loaded")
	}
}
