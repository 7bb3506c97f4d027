package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/turtacn/naa/internal/watcher"
	"github.com/turtacn/naa/pkg/consts"
	naaerrors "github.com/turtacn/naa/pkg/errors"
	"github.com/turtacn/naa/pkg/logger"
	"github.com/turtacn/naa/pkg/protocol"
)

// Launcher starts an external program without waiting for it.
type Launcher interface {
	Start(path string) error
}

// PresenceChecker reports whether a named process is in the process table.
type PresenceChecker interface {
	Check(ctx context.Context, name string) watcher.Presence
}

// ProcessSupervisor launches one program at a time and follows the lifecycle
// of its tracked process by name. It never holds or signals the launched process.
type ProcessSupervisor struct {
	launcher Launcher
	watcher  PresenceChecker
	interval time.Duration
	logger   logger.Logger
}

// New creates a new ProcessSupervisor polling every consts.PollInterval.
func New(l Launcher, w PresenceChecker, log logger.Logger) *ProcessSupervisor {
	if log == nil {
		log = logger.Log
	}
	return &ProcessSupervisor{
		launcher: l,
		watcher:  w,
		interval: consts.PollInterval,
		logger:   log.With("component", "supervisor"),
	}
}

// WithPollInterval changes the polling period. Used by tests.
func (ps *ProcessSupervisor) WithPollInterval(d time.Duration) *ProcessSupervisor {
	if d > 0 {
		ps.interval = d
	}
	return ps
}

// Launch starts step.Path and blocks until step.ProcessName has appeared
// (or startTimeout elapsed) and has then disappeared. The exit wait has no
// timeout. Only ctx cancellation cuts it short.
func (ps *ProcessSupervisor) Launch(ctx context.Context, step protocol.ProgramStep, startTimeout time.Duration) (res protocol.StepResult) {
	if startTimeout <= 0 {
		startTimeout = consts.DefaultStartTimeout
	}
	log := ps.logger.With("program", step.Path, "process", step.ProcessName)
	res = protocol.StepResult{Step: step, Started: time.Now()}
	defer func() { res.Finished = time.Now() }()

	log.Info("Supervisor: Launching program")
	if err := ps.launcher.Start(step.Path); err != nil {
		log.Error("Supervisor: Launch failed", "err", err)
		res.Outcome = protocol.StepLaunchFailed
		res.Err = naaerrors.New(naaerrors.ErrCodeLaunchFailed, "Launch", "cannot start "+step.Path, err)
		return res
	}

	started, err := ps.waitStart(ctx, step.ProcessName, startTimeout)
	if err != nil {
		log.Warn("Supervisor: Interrupted while waiting for start")
		res.Outcome, res.Err = protocol.StepInterrupted, err
		return res
	}
	if started {
		log.Info("Supervisor: Process started")
	} else {
		msg := fmt.Sprintf("process did not appear within %s", startTimeout)
		log.Warn("Supervisor: Start detection timed out", "timeout", startTimeout)
		res.Warnings = append(res.Warnings, msg)
	}

	if err := ps.waitExit(ctx, step.ProcessName); err != nil {
		log.Warn("Supervisor: Interrupted while waiting for exit")
		res.Outcome, res.Err = protocol.StepInterrupted, err
		return res
	}
	log.Info("Supervisor: Process exited")

	if started {
		res.Outcome = protocol.StepCompleted
	} else {
		res.Outcome = protocol.StepStartTimedOut
	}
	return res
}

// waitStart polls until the process is present or timeout elapses.
// It returns false on timeout and an error only when ctx is done.
func (ps *ProcessSupervisor) waitStart(ctx context.Context, name string, timeout time.Duration) (bool, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(ps.interval)
	defer ticker.Stop()

	for {
		if ps.watcher.Check(ctx, name) == watcher.Present {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		case <-ticker.C:
		}
	}
}

// waitExit polls until the process is known to be absent. Unknown keeps waiting.
func (ps *ProcessSupervisor) waitExit(ctx context.Context, name string) error {
	ticker := time.NewTicker(ps.interval)
	defer ticker.Stop()

	for {
		if ps.watcher.Check(ctx, name) == watcher.Absent {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Personal.AI order the ending
