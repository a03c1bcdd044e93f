// Package process provides interfaces and types for locating and reading the
// processes the host extends.
package process

import "errors"

var (
	// ErrProcessNotFound is returned when no running process matches a PID or name.
	ErrProcessNotFound = errors.New("process not found")

	// ErrProcessNotOpen is returned when an operation requiring an open process is attempted
	// before the process has been successfully opened or after it has been closed.
	ErrProcessNotOpen = errors.New("process not open")

	// ErrModuleNotFound is returned when a module is not loaded in the target process.
	ErrModuleNotFound = errors.New("module not loaded")

	// ErrAddressNotMapped is returned when an address falls outside every known module.
	ErrAddressNotMapped = errors.New("address not mapped")
)
