package process

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"dwmhost/coloransi"

	"github.com/Moonlight-Companies/gologger/logger"
	psproc "github.com/shirou/gopsutil/v4/process"
)

// Finder implements ProcessFinder on top of gopsutil, which covers both the
// Windows process snapshot and /proc.
type Finder struct {
	log *logger.Logger
}

// NewProcessFinder creates a new Finder
func NewProcessFinder() *Finder {
	return &Finder{
		log: logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "finder")),
	}
}

// FindProcessByPID finds a process by its PID
func (f *Finder) FindProcessByPID(ctx context.Context, pid ProcessID) (*ProcessInfo, error) {
	p, err := psproc.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		if errors.Is(err, psproc.ErrorProcessNotRunning) {
			return nil, fmt.Errorf("%w: pid %d", ErrProcessNotFound, pid)
		}
		return nil, fmt.Errorf("open pid %d: %w", pid, err)
	}
	info, err := describe(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%w: pid %d: %v", ErrProcessNotFound, pid, err)
	}
	return info, nil
}

// FindProcessByName finds processes whose image name equals name, ignoring
// case. Results are ordered by PID. An empty result is not an error.
func (f *Finder) FindProcessByName(ctx context.Context, name string) ([]ProcessInfo, error) {
	if name == "" {
		return nil, errors.New("empty process name")
	}

	all, err := f.FindAllProcesses(ctx)
	if err != nil {
		return nil, err
	}

	var out []ProcessInfo
	for _, info := range all {
		if MatchName(info, name) {
			out = append(out, info)
		}
	}
	f.log.Debugln("Found", len(out), "processes named", name)
	return out, nil
}

// FindAllProcesses returns information about all running processes
func (f *Finder) FindAllProcesses(ctx context.Context) ([]ProcessInfo, error) {
	procs, err := psproc.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	out := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		info, err := describe(ctx, p)
		if err != nil {
			// exited while listing
			continue
		}
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out, nil
}

// MatchName reports whether info's image name, or the base name of its
// executable, equals name ignoring case.
func MatchName(info ProcessInfo, name string) bool {
	if strings.EqualFold(info.Name, name) {
		return true
	}
	return info.Exe != "" && strings.EqualFold(filepath.Base(info.Exe), name)
}

func describe(ctx context.Context, p *psproc.Process) (*ProcessInfo, error) {
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return nil, err
	}
	info := &ProcessInfo{PID: ProcessID(p.Pid), Name: name}

	// protected processes deny these to unelevated callers
	if ppid, err := p.PpidWithContext(ctx); err == nil {
		info.PPID = ProcessID(ppid)
	}
	if exe, err := p.ExeWithContext(ctx); err == nil {
		info.Exe = exe
	}
	if user, err := p.UsernameWithContext(ctx); err == nil {
		info.User = user
	}
	return info, nil
}
