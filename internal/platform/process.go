// Package platform holds the OS adapters behind the scheduler's narrow
// interfaces: process table, program launcher, audio mute, delayed shutdown,
// autostart registration and the console countdown.
package platform

import (
	"context"
	"os/exec"
	"path/filepath"

	"github.com/shirou/gopsutil/v4/process"

	naaerrors "github.com/turtacn/naa/pkg/errors"
	"github.com/turtacn/naa/pkg/logger"
)

// ProcessTable reads process names through gopsutil.
type ProcessTable struct{}

// ListNames returns the set of live process names. Processes that vanish or
// deny access while being enumerated are skipped.
func (ProcessTable) ListNames(ctx context.Context) (map[string]struct{}, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{}, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		names[name] = struct{}{}
	}
	return names, nil
}

// ExecLauncher starts programs with os/exec and forgets about them.
// The child runs in its own directory; it is reaped in the background so a
// finished child never lingers in the process table.
type ExecLauncher struct {
	logger logger.Logger
}

func NewExecLauncher(log logger.Logger) *ExecLauncher {
	if log == nil {
		log = logger.Log
	}
	return &ExecLauncher{logger: log.With("component", "launcher")}
}

func (l *ExecLauncher) Start(path string) error {
	if path == "" {
		return naaerrors.New(naaerrors.ErrCodeLaunchFailed, "Start", "empty program path", nil)
	}
	if filepath.Base(path) != path {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		path = abs
	}

	cmd := exec.Command(path)
	// programs run from their own directory, not from wherever naa was started
	if filepath.IsAbs(path) {
		cmd.Dir = filepath.Dir(path)
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	pid := cmd.Process.Pid
	l.logger.Debug("Launcher: Process forked", "program", path, "pid", pid)
	go func() {
		err := cmd.Wait()
		l.logger.Debug("Launcher: Launched process ended", "program", path, "pid", pid, "err", err)
	}()
	return nil
}

// Personal.AI order the ending
