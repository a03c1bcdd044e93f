package process

// Process is the interface that defines operations for inspecting an opened process
type Process interface {
	// Open opens a process with the given PID for reading
	Open(pid ProcessID) error

	// Close closes the process and releases resources
	Close() error

	// GetPID returns the process ID
	GetPID() ProcessID

	// ReadMemory reads memory from the process at the specified address
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)

	// Modules returns the modules currently loaded in the process, sorted by base address
	Modules() (ModuleMap, error)
}
