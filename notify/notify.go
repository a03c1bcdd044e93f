// Package notify signals lifecycle events to the injected extension through
// its message-only window, and broadcasts the desktop preference change that
// makes the extension's effect visible.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dwmhost/coloransi"
	"dwmhost/process"

	"github.com/Moonlight-Companies/gologger/logger"
)

const (
	// DefaultClassName is the window class the extension registers for its
	// message-only window.
	DefaultClassName = "DWMBlurGlassNotify"

	wmApp = 0x8000

	// MessageID carries an Event in wParam.
	MessageID = wmApp + 20

	// DeliverTimeout bounds Deliver when the context has no deadline.
	DeliverTimeout = 5 * time.Second
)

// ErrUnsupported is returned by the broadcaster on platforms without one.
var ErrUnsupported = errors.New("notifications are not supported on this platform")

// Event is a lifecycle event understood by the extension.
type Event uint32

const (
	EventShutdown Event = iota
)

func (e Event) String() string {
	switch e {
	case EventShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("event(%d)", uint32(e))
	}
}

// ParseEvent accepts an event name, ignoring case.
func ParseEvent(s string) (Event, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "shutdown":
		return EventShutdown, nil
	default:
		return 0, fmt.Errorf("unknown event %q", s)
	}
}

// Window is an opaque window handle. Zero means none.
type Window uintptr

// WindowSystem is the subset of the windowing API the notifier needs.
type WindowSystem interface {
	// NextMessageWindow returns the message-only window of class after the
	// given one, or 0 when the enumeration is exhausted.
	NextMessageWindow(class string, after Window) Window
	OwnerPID(w Window) process.ProcessID
	IsWindow(w Window) bool
	Post(w Window, msg uint32, wParam, lParam uintptr) error
	// Send returns once the window procedure has handled the message, or
	// fails after timeout or when the owning thread is hung.
	Send(w Window, msg uint32, wParam, lParam uintptr, timeout time.Duration) error
}

// Broadcaster applies the desktop UI preference change after an injection.
type Broadcaster interface {
	BroadcastPreference() error
}

// Notifier posts events to the extension's window in a target process.
type Notifier struct {
	ws    WindowSystem
	class string
	log   *logger.Logger
}

// New creates a Notifier looking for windows of class.
func New(ws WindowSystem, class string) *Notifier {
	if class == "" {
		class = DefaultClassName
	}
	return &Notifier{
		ws:    ws,
		class: class,
		log:   logger.NewLogger(coloransi.Color(coloransi.ColorTeal, coloransi.ColorOrange, "notify")),
	}
}

// FindWindow returns the message-only window of the notifier's class owned by pid.
func (n *Notifier) FindWindow(pid process.ProcessID) (Window, bool) {
	if pid == 0 {
		return 0, false
	}
	for w := n.ws.NextMessageWindow(n.class, 0); w != 0; w = n.ws.NextMessageWindow(n.class, w) {
		if n.ws.OwnerPID(w) == pid {
			return w, true
		}
	}
	return 0, false
}

// Notify posts ev to the extension running in pid without waiting for it to
// be handled. A missing window means the extension is absent or not yet
// initialized, and the event is dropped without error.
func (n *Notifier) Notify(ctx context.Context, pid process.ProcessID, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w, ok := n.FindWindow(pid)
	if !ok || !n.ws.IsWindow(w) {
		n.log.Debugln("No", n.class, "window in pid", pid, "dropping", ev)
		return nil
	}

	if err := n.ws.Post(w, MessageID, uintptr(ev), 0); err != nil {
		return fmt.Errorf("post %s to pid %d: %w", ev, pid, err)
	}
	n.log.Infoln("Posted", ev, "to pid", pid)
	return nil
}

// Deliver sends ev to the extension running in pid and waits until its window
// procedure has handled it. As with Notify, a missing window is not an error.
func (n *Notifier) Deliver(ctx context.Context, pid process.ProcessID, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w, ok := n.FindWindow(pid)
	if !ok || !n.ws.IsWindow(w) {
		n.log.Debugln("No", n.class, "window in pid", pid, "dropping", ev)
		return nil
	}

	timeout := DeliverTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	if err := n.ws.Send(w, MessageID, uintptr(ev), 0, timeout); err != nil {
		return fmt.Errorf("send %s to pid %d: %w", ev, pid, err)
	}
	n.log.Infoln("Delivered", ev, "to pid", pid)
	return nil
}
