// Package lifecycle sequences offset resolution, extension injection and
// removal, and lifecycle notifications for the target process.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"dwmhost/coloransi"
	"dwmhost/i18n"
	"dwmhost/inject"
	"dwmhost/notify"
	"dwmhost/process"
	"dwmhost/resolver"

	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/samber/lo"
)

// Resolver is the resolution side used by the controller.
type Resolver interface {
	ResolveAll(ctx context.Context) (*resolver.Report, error)
	SymbolState(ctx context.Context) error
	Prefetch(ctx context.Context) error
}

// Notifier signals lifecycle events to the extension in a process. Notify
// queues the event; Deliver returns once the extension has handled it.
type Notifier interface {
	Notify(ctx context.Context, pid process.ProcessID, ev notify.Event) error
	Deliver(ctx context.Context, pid process.ProcessID, ev notify.Event) error
}

// Error is a failure shown to the user as a localized message.
type Error struct {
	Key     string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Deps are the services the controller drives.
type Deps struct {
	Resolver    Resolver
	Finder      process.ProcessFinder
	Injector    inject.Injector
	Notifier    Notifier
	Broadcaster notify.Broadcaster
	Catalog     *i18n.Catalog
}

// Options configures a Controller.
type Options struct {
	TargetProcess string // e.g. "dwm.exe"
	ExtensionPath string
	Language      string

	// AutoDownload prefetches symbols when the local cache cannot serve a pass.
	AutoDownload bool

	// OnTransition is called after every state change, under the controller lock.
	OnTransition func(from, to State)
}

// Controller owns the lifecycle state machine. Operations are serialized.
type Controller struct {
	deps Deps
	opts Options
	log  *logger.Logger

	mu     sync.Mutex
	state  State
	active []process.ProcessID
}

// New creates a Controller in the Idle state.
func New(deps Deps, opts Options) *Controller {
	if deps.Catalog == nil {
		deps.Catalog = i18n.Default()
	}
	if opts.Language == "" {
		opts.Language = i18n.Fallback
	}
	return &Controller{
		deps: deps,
		opts: opts,
		log:  logger.NewLogger(coloransi.Color(coloransi.ColorWhite, coloransi.ColorOrange, "lifecycle")),
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActivePIDs returns the processes the extension was injected into.
func (c *Controller) ActivePIDs() []process.ProcessID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]process.ProcessID(nil), c.active...)
}

func (c *Controller) transition(to State) error {
	from := c.state
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	c.state = to
	c.log.Debugln("State", from, "->", to)
	if c.opts.OnTransition != nil {
		c.opts.OnTransition(from, to)
	}
	return nil
}

func (c *Controller) localized(key string, err error) *Error {
	return &Error{Key: key, Message: c.deps.Catalog.T(c.opts.Language, key), Err: err}
}

func (c *Controller) targets(ctx context.Context) ([]process.ProcessID, error) {
	infos, err := c.deps.Finder.FindProcessByName(ctx, c.opts.TargetProcess)
	if err != nil {
		return nil, err
	}
	return lo.Map(infos, func(info process.ProcessInfo, _ int) process.ProcessID { return info.PID }), nil
}

// Sync adopts an extension that is already loaded in a target process, as
// when the host restarts while the extension keeps running. It only acts in
// Idle and Resolved.
func (c *Controller) Sync(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle && c.state != Resolved {
		return nil
	}

	pids, err := c.targets(ctx)
	if err != nil {
		return err
	}
	var loaded []process.ProcessID
	for _, pid := range pids {
		ok, err := c.deps.Injector.Loaded(ctx, pid, c.opts.ExtensionPath)
		if err != nil {
			if errors.Is(err, inject.ErrUnsupported) {
				return nil
			}
			c.log.Warn("Cannot inspect pid ", pid, ": ", err)
			continue
		}
		if ok {
			loaded = append(loaded, pid)
		}
	}
	if len(loaded) == 0 {
		return nil
	}

	c.log.Infoln("Extension already active in", loaded)
	c.active = loaded
	return c.transition(Active)
}

// Resolve runs a resolution pass. It is refused while the extension is
// active so a reader never observes a table being rewritten.
func (c *Controller) Resolve(ctx context.Context) (*resolver.Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolve(ctx)
}

func (c *Controller) resolve(ctx context.Context) (*resolver.Report, error) {
	if c.state == Active {
		return nil, c.localized(i18n.ModuleActive, ErrModuleActive)
	}
	if err := c.transition(Resolving); err != nil {
		return nil, err
	}

	if c.opts.AutoDownload {
		if err := c.deps.Resolver.SymbolState(ctx); err != nil {
			c.log.Infoln("Symbols not cached, downloading:", err)
			if err := c.deps.Resolver.Prefetch(ctx); err != nil {
				c.log.Warn("Symbol download failed: ", err)
			}
		}
	}

	report, err := c.deps.Resolver.ResolveAll(ctx)
	if err != nil {
		if terr := c.transition(ResolutionFailed); terr != nil {
			return report, terr
		}
		return report, c.localized(i18n.SymLoadFail, err)
	}
	return report, c.transition(Resolved)
}

// Load resolves offsets and injects the extension into the first running
// target process. A missing target is an error.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.resolve(ctx); err != nil {
		return err
	}
	pids, err := c.targets(ctx)
	if err != nil {
		return err
	}
	if len(pids) == 0 {
		return c.localized(i18n.NoTarget, fmt.Errorf("%w: %s", process.ErrProcessNotFound, c.opts.TargetProcess))
	}
	return c.injectInto(ctx, pids[:1])
}

// LoadAll resolves offsets and injects the extension into every running
// target process. With no target running there is nothing to do yet.
func (c *Controller) LoadAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.resolve(ctx); err != nil {
		return err
	}
	pids, err := c.targets(ctx)
	if err != nil {
		return err
	}
	if len(pids) == 0 {
		c.log.Infoln("No", c.opts.TargetProcess, "running, nothing to load")
		return nil
	}
	return c.injectInto(ctx, pids)
}

func (c *Controller) injectInto(ctx context.Context, pids []process.ProcessID) error {
	if err := c.transition(Injecting); err != nil {
		return err
	}

	for _, pid := range pids {
		if err := c.deps.Injector.Inject(ctx, pid, c.opts.ExtensionPath); err != nil {
			fallback := Resolved
			if len(c.active) > 0 {
				fallback = Active
			}
			if terr := c.transition(fallback); terr != nil {
				return terr
			}
			return err
		}
		c.active = append(c.active, pid)

		if c.deps.Broadcaster != nil {
			if err := c.deps.Broadcaster.BroadcastPreference(); err != nil {
				c.log.Warn("Preference broadcast failed: ", err)
			}
		}
	}
	return c.transition(Active)
}

// Shutdown tells the extension to shut down, waits until it has, and then
// unloads it from every process it was injected into. An extension that did
// not confirm the shutdown stays loaded.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.transition(Removing); err != nil {
		return err
	}

	for len(c.active) > 0 {
		pid := c.active[0]
		if err := c.deps.Notifier.Deliver(ctx, pid, notify.EventShutdown); err != nil {
			c.log.Warn("Extension in pid ", pid, " did not confirm shutdown: ", err)
			if terr := c.transition(Active); terr != nil {
				return terr
			}
			return err
		}
		if err := c.deps.Injector.UnInject(ctx, pid, c.opts.ExtensionPath); err != nil {
			if terr := c.transition(Active); terr != nil {
				return terr
			}
			return err
		}
		c.active = c.active[1:]
	}
	c.active = nil
	return c.transition(Idle)
}

// Notify posts ev to the extension in every running target process. Absent
// processes and windows are not errors.
func (c *Controller) Notify(ctx context.Context, ev notify.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pids, err := c.targets(ctx)
	if err != nil {
		return err
	}
	var firstErr error
	for _, pid := range pids {
		if err := c.deps.Notifier.Notify(ctx, pid, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SymbolState reports whether the local cache holds symbols for both modules.
func (c *Controller) SymbolState(ctx context.Context) error {
	return c.deps.Resolver.SymbolState(ctx)
}

// Download fills the local symbol cache from the symbol server.
func (c *Controller) Download(ctx context.Context) error {
	if err := c.deps.Resolver.Prefetch(ctx); err != nil {
		return c.localized(i18n.SymDownloadFail, err)
	}
	return nil
}
