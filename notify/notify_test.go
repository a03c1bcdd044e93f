package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"dwmhost/process"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type posted struct {
	w      Window
	msg    uint32
	wParam uintptr
}

type sent struct {
	posted
	timeout time.Duration
}

// fakeWindows holds message-only windows in enumeration order.
type fakeWindows struct {
	classes map[Window]string
	owners  map[Window]process.ProcessID
	order   []Window
	dead    map[Window]bool
	postErr error
	sendErr error
	posts   []posted
	sends   []sent
}

func (f *fakeWindows) NextMessageWindow(class string, after Window) Window {
	seen := after == 0
	for _, w := range f.order {
		if !seen {
			seen = w == after
			continue
		}
		if f.classes[w] == class {
			return w
		}
	}
	return 0
}

func (f *fakeWindows) OwnerPID(w Window) process.ProcessID { return f.owners[w] }
func (f *fakeWindows) IsWindow(w Window) bool              { return !f.dead[w] }

func (f *fakeWindows) Post(w Window, msg uint32, wParam, _ uintptr) error {
	if f.postErr != nil {
		return f.postErr
	}
	f.posts = append(f.posts, posted{w: w, msg: msg, wParam: wParam})
	return nil
}

func (f *fakeWindows) Send(w Window, msg uint32, wParam, _ uintptr, timeout time.Duration) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sends = append(f.sends, sent{posted: posted{w: w, msg: msg, wParam: wParam}, timeout: timeout})
	return nil
}

func newFake() *fakeWindows {
	return &fakeWindows{
		classes: map[Window]string{10: DefaultClassName, 20: "Other", 30: DefaultClassName},
		owners:  map[Window]process.ProcessID{10: 400, 20: 900, 30: 900},
		order:   []Window{10, 20, 30},
		dead:    map[Window]bool{},
	}
}

func TestFindWindow_FiltersByOwner(t *testing.T) {
	n := New(newFake(), "")

	w, ok := n.FindWindow(900)
	require.True(t, ok)
	assert.Equal(t, Window(30), w)

	_, ok = n.FindWindow(0)
	assert.False(t, ok)
	_, ok = n.FindWindow(1234)
	assert.False(t, ok)
}

func TestNotify_PostsShutdown(t *testing.T) {
	ws := newFake()
	n := New(ws, DefaultClassName)

	require.NoError(t, n.Notify(context.Background(), 900, EventShutdown))
	require.Len(t, ws.posts, 1)
	assert.Equal(t, posted{w: 30, msg: MessageID, wParam: uintptr(EventShutdown)}, ws.posts[0])
	assert.Equal(t, uint32(0x8014), uint32(MessageID))
}

func TestNotify_AbsentWindowIsNoop(t *testing.T) {
	ws := newFake()
	n := New(ws, "")

	assert.NoError(t, n.Notify(context.Background(), 555, EventShutdown))
	assert.Empty(t, ws.posts)

	ws.dead[30] = true
	assert.NoError(t, n.Notify(context.Background(), 900, EventShutdown))
	assert.Empty(t, ws.posts)
}

func TestNotify_PostFailure(t *testing.T) {
	ws := newFake()
	ws.postErr = errors.New("queue full")
	n := New(ws, "")

	err := n.Notify(context.Background(), 900, EventShutdown)
	assert.ErrorIs(t, err, ws.postErr)
}

func TestDeliver_WaitsForHandling(t *testing.T) {
	ws := newFake()
	n := New(ws, "")

	require.NoError(t, n.Deliver(context.Background(), 900, EventShutdown))
	assert.Empty(t, ws.posts, "delivery does not queue")
	require.Len(t, ws.sends, 1)
	assert.Equal(t, posted{w: 30, msg: MessageID, wParam: uintptr(EventShutdown)}, ws.sends[0].posted)
	assert.Equal(t, DeliverTimeout, ws.sends[0].timeout)
}

func TestDeliver_TimeoutFollowsContext(t *testing.T) {
	ws := newFake()
	n := New(ws, "")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, n.Deliver(ctx, 900, EventShutdown))
	require.Len(t, ws.sends, 1)
	assert.LessOrEqual(t, ws.sends[0].timeout, time.Second)
	assert.Positive(t, ws.sends[0].timeout)

	expired, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()
	assert.ErrorIs(t, n.Deliver(expired, 900, EventShutdown), context.DeadlineExceeded)
	assert.Len(t, ws.sends, 1)
}

func TestDeliver_AbsentWindowIsNoop(t *testing.T) {
	ws := newFake()
	n := New(ws, "")

	assert.NoError(t, n.Deliver(context.Background(), 555, EventShutdown))
	assert.Empty(t, ws.sends)
}

func TestDeliver_SendFailure(t *testing.T) {
	ws := newFake()
	ws.sendErr = errors.New("This operation returned because the timeout period expired.")
	n := New(ws, "")

	err := n.Deliver(context.Background(), 900, EventShutdown)
	assert.ErrorIs(t, err, ws.sendErr)
	assert.Contains(t, err.Error(), "pid 900")
}

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent(" Shutdown ")
	require.NoError(t, err)
	assert.Equal(t, EventShutdown, ev)
	assert.Equal(t, "shutdown", ev.String())

	_, err = ParseEvent("reload")
	assert.Error(t, err)
}
