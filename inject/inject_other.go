//go:build !windows

package inject

import (
	"context"

	"dwmhost/process"
)

type unsupportedInjector struct{}

func (unsupportedInjector) Inject(_ context.Context, pid process.ProcessID, path string) error {
	return &Error{Op: "inject", PID: pid, Path: path, Err: ErrUnsupported}
}

func (unsupportedInjector) UnInject(_ context.Context, pid process.ProcessID, path string) error {
	return &Error{Op: "uninject", PID: pid, Path: path, Err: ErrUnsupported}
}

func (unsupportedInjector) Loaded(context.Context, process.ProcessID, string) (bool, error) {
	return false, ErrUnsupported
}

// New returns the platform injector. Only Windows has one.
func New() Injector {
	return unsupportedInjector{}
}
