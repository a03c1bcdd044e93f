//go:build windows

package inject

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unsafe"

	"dwmhost/coloransi"
	"dwmhost/process"
	"dwmhost/process_windows"

	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/windows"
)

var (
	modkernel32            = windows.NewLazySystemDLL("kernel32.dll")
	procVirtualAllocEx     = modkernel32.NewProc("VirtualAllocEx")
	procVirtualFreeEx      = modkernel32.NewProc("VirtualFreeEx")
	procCreateRemoteThread = modkernel32.NewProc("CreateRemoteThread")
	procLoadLibraryW       = modkernel32.NewProc("LoadLibraryW")
	procFreeLibrary        = modkernel32.NewProc("FreeLibrary")
)

const (
	accessRights = windows.PROCESS_CREATE_THREAD | windows.PROCESS_QUERY_INFORMATION |
		windows.PROCESS_VM_OPERATION | windows.PROCESS_VM_WRITE | windows.PROCESS_VM_READ

	defaultWait = 10 * time.Second
	waitTimeout = 0x00000102 // WAIT_TIMEOUT
)

// RemoteThreadInjector runs LoadLibraryW / FreeLibrary on a thread created in
// the target. kernel32 is mapped at the same address in every process of a
// boot session, so the host's own export addresses are valid remotely.
type RemoteThreadInjector struct {
	log *logger.Logger
}

// New returns the platform injector.
func New() Injector {
	return &RemoteThreadInjector{
		log: logger.NewLogger(coloransi.Color(coloransi.ColorIndigo, coloransi.ColorOrange, "inject")),
	}
}

func (ri *RemoteThreadInjector) Inject(ctx context.Context, pid process.ProcessID, modulePath string) error {
	fail := func(err error) error {
		return &Error{Op: "inject", PID: pid, Path: modulePath, Err: err}
	}

	abs, err := CheckModule(modulePath)
	if err != nil {
		return fail(err)
	}
	if base, err := loadedBase(pid, abs); err == nil {
		ri.log.Infoln("Module already loaded in pid", pid, "at", base.ToString())
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	h, err := windows.OpenProcess(accessRights, false, uint32(pid))
	if err != nil {
		return fail(fmt.Errorf("OpenProcess: %w", err))
	}
	defer windows.CloseHandle(h)

	path, err := windows.UTF16FromString(abs)
	if err != nil {
		return fail(err)
	}
	size := uintptr(len(path) * 2)

	remote, _, callErr := procVirtualAllocEx.Call(uintptr(h), 0, size,
		windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if remote == 0 {
		return fail(fmt.Errorf("VirtualAllocEx: %w", callErr))
	}
	release := true
	defer func() {
		if release {
			procVirtualFreeEx.Call(uintptr(h), remote, 0, windows.MEM_RELEASE)
		}
	}()

	var written uintptr
	if err := windows.WriteProcessMemory(h, remote, (*byte)(unsafe.Pointer(&path[0])), size, &written); err != nil {
		return fail(fmt.Errorf("WriteProcessMemory: %w", err))
	}

	err = runRemote(ctx, h, procLoadLibraryW, remote)
	if errors.Is(err, ErrRemoteTimeout) {
		// LoadLibraryW may still be reading the path
		release = false
		ri.log.Warn("Remote load in pid ", pid, " still running, leaving its path buffer allocated")
	}
	if err := confirm(err, true, func() (bool, error) { return isLoaded(pid, abs) }); err != nil {
		return fail(err)
	}

	ri.log.Infoln("Injected", filepath.Base(abs), "into pid", pid)
	return nil
}

func (ri *RemoteThreadInjector) UnInject(ctx context.Context, pid process.ProcessID, modulePath string) error {
	fail := func(err error) error {
		return &Error{Op: "uninject", PID: pid, Path: modulePath, Err: err}
	}

	abs, err := filepath.Abs(modulePath)
	if err != nil {
		return fail(err)
	}
	base, err := loadedBase(pid, abs)
	if err != nil {
		return fail(err)
	}

	h, err := windows.OpenProcess(accessRights, false, uint32(pid))
	if err != nil {
		return fail(fmt.Errorf("OpenProcess: %w", err))
	}
	defer windows.CloseHandle(h)

	err = runRemote(ctx, h, procFreeLibrary, uintptr(base))
	if err := confirm(err, false, func() (bool, error) { return isLoaded(pid, abs) }); err != nil {
		return fail(err)
	}

	ri.log.Infoln("Unloaded", filepath.Base(abs), "from pid", pid)
	return nil
}

func (ri *RemoteThreadInjector) Loaded(_ context.Context, pid process.ProcessID, modulePath string) (bool, error) {
	abs, err := filepath.Abs(modulePath)
	if err != nil {
		return false, err
	}
	return isLoaded(pid, abs)
}

func isLoaded(pid process.ProcessID, path string) (bool, error) {
	_, err := loadedBase(pid, path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotLoaded):
		return false, nil
	default:
		return false, err
	}
}

// loadedBase returns the load address of the module at path in pid.
func loadedBase(pid process.ProcessID, path string) (process.ProcessMemoryAddress, error) {
	p, err := process_windows.NewWithPID(pid)
	if err != nil {
		return 0, err
	}
	defer p.Close()

	mods, err := p.Modules()
	if err != nil {
		return 0, err
	}
	for _, m := range mods {
		if strings.EqualFold(m.Path, path) {
			return m.Base, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrNotLoaded, filepath.Base(path))
}

// runRemote starts fn(arg) on a new thread in the target and waits for it.
// Nothing is started once ctx is done.
func runRemote(ctx context.Context, h windows.Handle, fn *windows.LazyProc, arg uintptr) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn.Find(); err != nil {
		return err
	}

	wait := defaultWait
	if deadline, ok := ctx.Deadline(); ok {
		wait = time.Until(deadline)
	}
	if wait <= 0 {
		return context.DeadlineExceeded
	}

	th, _, callErr := procCreateRemoteThread.Call(uintptr(h), 0, 0, fn.Addr(), arg, 0, 0)
	if th == 0 {
		return fmt.Errorf("CreateRemoteThread: %w", callErr)
	}
	thread := windows.Handle(th)
	defer windows.CloseHandle(thread)

	ev, err := windows.WaitForSingleObject(thread, uint32(wait.Milliseconds()))
	if err != nil {
		return fmt.Errorf("WaitForSingleObject: %w", err)
	}
	switch ev {
	case windows.WAIT_OBJECT_0:
		return nil
	case waitTimeout:
		return fmt.Errorf("%w: %s after %s", ErrRemoteTimeout, fn.Name, wait)
	default:
		return fmt.Errorf("WaitForSingleObject: unexpected result 0x%X", ev)
	}
}
