package process

import "context"

// ProcessFinder defines operations for discovering processes
type ProcessFinder interface {
	// FindProcessByPID finds a process by its PID
	FindProcessByPID(ctx context.Context, pid ProcessID) (*ProcessInfo, error)

	// FindProcessByName finds processes by their image name (exact, case-insensitive match)
	FindProcessByName(ctx context.Context, name string) ([]ProcessInfo, error)

	// FindAllProcesses returns information about all running processes
	FindAllProcesses(ctx context.Context) ([]ProcessInfo, error)
}
