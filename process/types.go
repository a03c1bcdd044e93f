package process

import "fmt"

// ProcessID represents a unique identifier for a process
type ProcessID int

// ProcessInfo contains basic information about a process
type ProcessInfo struct {
	PID  ProcessID // Process ID
	PPID ProcessID // Parent Process ID
	Name string    // Image name, e.g. "dwm.exe"
	Exe  string    // Path to the executable, empty if access was denied
	User string    // Account running the process, empty if access was denied
}

func (pi ProcessInfo) String() string {
	return fmt.Sprintf("%s (pid %d)", pi.Name, pi.PID)
}

// ProcessMemoryAddress represents a memory address within a process
type ProcessMemoryAddress uint64

func (pma ProcessMemoryAddress) ToString() string {
	return fmt.Sprintf("0x%X", uint64(pma))
}

// ProcessMemorySize represents a size of memory region
type ProcessMemorySize uint
