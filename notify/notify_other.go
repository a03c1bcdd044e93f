//go:build !windows

package notify

import (
	"time"

	"dwmhost/process"
)

type noWindows struct{}

func (noWindows) NextMessageWindow(string, Window) Window     { return 0 }
func (noWindows) OwnerPID(Window) process.ProcessID           { return 0 }
func (noWindows) IsWindow(Window) bool                        { return false }
func (noWindows) Post(Window, uint32, uintptr, uintptr) error { return ErrUnsupported }

func (noWindows) Send(Window, uint32, uintptr, uintptr, time.Duration) error {
	return ErrUnsupported
}

type noBroadcaster struct{}

func (noBroadcaster) BroadcastPreference() error { return ErrUnsupported }

// NewWindowSystem returns the platform window system. Elsewhere than Windows
// no message-only windows exist, so every notification is dropped.
func NewWindowSystem() WindowSystem {
	return noWindows{}
}

// NewBroadcaster returns the platform preference broadcaster.
func NewBroadcaster() Broadcaster {
	return noBroadcaster{}
}
