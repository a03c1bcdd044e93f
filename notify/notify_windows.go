//go:build windows

package notify

import (
	"fmt"
	"time"
	"unsafe"

	"dwmhost/process"

	"golang.org/x/sys/windows"
)

var (
	moduser32                 = windows.NewLazySystemDLL("user32.dll")
	procFindWindowExW         = moduser32.NewProc("FindWindowExW")
	procGetWindowThreadProcId = moduser32.NewProc("GetWindowThreadProcessId")
	procIsWindow              = moduser32.NewProc("IsWindow")
	procPostMessageW          = moduser32.NewProc("PostMessageW")
	procSendMessageTimeoutW   = moduser32.NewProc("SendMessageTimeoutW")
	procSystemParametersInfoW = moduser32.NewProc("SystemParametersInfoW")
)

const (
	hwndMessage = ^uintptr(2) // HWND_MESSAGE, (HWND)-3

	smtoAbortIfHung = 0x0002

	spiSetGradientCaptions = 0x1009
	spifSendChange         = 0x0002
)

type user32Windows struct{}

// NewWindowSystem returns the user32 window system.
func NewWindowSystem() WindowSystem {
	return user32Windows{}
}

func (user32Windows) NextMessageWindow(class string, after Window) Window {
	cls, err := windows.UTF16PtrFromString(class)
	if err != nil {
		return 0
	}
	r, _, _ := procFindWindowExW.Call(hwndMessage, uintptr(after), uintptr(unsafe.Pointer(cls)), 0)
	return Window(r)
}

func (user32Windows) OwnerPID(w Window) process.ProcessID {
	var pid uint32
	procGetWindowThreadProcId.Call(uintptr(w), uintptr(unsafe.Pointer(&pid)))
	return process.ProcessID(pid)
}

func (user32Windows) IsWindow(w Window) bool {
	r, _, _ := procIsWindow.Call(uintptr(w))
	return r != 0
}

func (user32Windows) Post(w Window, msg uint32, wParam, lParam uintptr) error {
	r, _, err := procPostMessageW.Call(uintptr(w), uintptr(msg), wParam, lParam)
	if r == 0 {
		return fmt.Errorf("PostMessageW: %w", err)
	}
	return nil
}

func (user32Windows) Send(w Window, msg uint32, wParam, lParam uintptr, timeout time.Duration) error {
	var result uintptr
	r, _, err := procSendMessageTimeoutW.Call(uintptr(w), uintptr(msg), wParam, lParam,
		smtoAbortIfHung, uintptr(timeout.Milliseconds()), uintptr(unsafe.Pointer(&result)))
	if r == 0 {
		return fmt.Errorf("SendMessageTimeoutW: %w", err)
	}
	return nil
}

type gradientCaptions struct{}

// NewBroadcaster returns the broadcaster that re-announces gradient captions.
func NewBroadcaster() Broadcaster {
	return gradientCaptions{}
}

// BroadcastPreference turns gradient captions on and lets every top-level
// window know, which makes the desktop repaint its frames.
func (gradientCaptions) BroadcastPreference() error {
	enable := int32(1)
	r, _, err := procSystemParametersInfoW.Call(spiSetGradientCaptions, 0, uintptr(unsafe.Pointer(&enable)), spifSendChange)
	if r == 0 {
		return fmt.Errorf("SystemParametersInfoW(SPI_SETGRADIENTCAPTIONS): %w", err)
	}
	return nil
}
