//go:build !windows

package symbols

import "context"

type unsupportedWalker struct{}

func (unsupportedWalker) Walk(_ context.Context, module, _, _ string, _ VisitFunc) error {
	return &WalkError{Module: module, Err: ErrUnsupported}
}

// NewWalker returns the platform symbol walker. Only Windows has one.
func NewWalker(string) (Walker, error) {
	return unsupportedWalker{}, ErrUnsupported
}

// NewUndecorator returns the platform undecorator.
func NewUndecorator(string) Undecorator {
	return Demangler{}
}
