package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/naa/internal/monitor"
	"github.com/turtacn/naa/pkg/logger"
	"github.com/turtacn/naa/pkg/protocol"
)

// Supervisor runs one step to completion.
type Supervisor interface {
	Launch(ctx context.Context, step protocol.ProgramStep, startTimeout time.Duration) protocol.StepResult
}

// Muter toggles the system audio. It has no reference counting.
type Muter interface {
	SetMuted(ctx context.Context, muted bool) error
}

// ShutdownScheduler asks the OS to power off after a delay and returns at once.
type ShutdownScheduler interface {
	ScheduleShutdown(ctx context.Context, delay time.Duration) error
}

// Coordinator executes one full run: mute, steps in order, unmute, shutdown.
type Coordinator struct {
	supervisor Supervisor
	muter      Muter
	shutdown   ShutdownScheduler
	logger     logger.Logger
}

func NewCoordinator(s Supervisor, m Muter, sd ShutdownScheduler, log logger.Logger) *Coordinator {
	if log == nil {
		log = logger.Log
	}
	return &Coordinator{
		supervisor: s,
		muter:      m,
		shutdown:   sd,
		logger:     log.With("component", "coordinator"),
	}
}

// ExecuteRun supervises every step of cfg sequentially and records each
// outcome. A step failure never stops the sequence. Cancelling ctx stops
// launching and marks the remaining steps interrupted; an interrupted run
// never requests a shutdown.
func (c *Coordinator) ExecuteRun(ctx context.Context, cfg protocol.RunConfig, outcome protocol.TriggerOutcome) (res protocol.RunResult) {
	res = protocol.RunResult{ID: uuid.NewString(), Trigger: outcome, Started: time.Now()}
	log := c.logger.With("run_id", res.ID)
	log.Info("Coordinator: Run started", "trigger", outcome, "steps", len(cfg.Steps))

	defer func() {
		res.Finished = time.Now()
		monitor.ObserveRun(res)
		log.Info("Coordinator: Run finished",
			"duration", res.Finished.Sub(res.Started).Round(time.Second),
			"failed", res.Failed(),
			"warnings", len(res.Warnings()),
			"interrupted", res.Interrupted(),
			"shutdown_scheduled", res.ShutdownScheduled)
	}()

	res.Steps, res.Muted = c.runMuted(ctx, cfg, log)

	delay, ok := cfg.ShutdownAfterRun()
	if !ok || c.shutdown == nil {
		return res
	}
	if res.Interrupted() || ctx.Err() != nil {
		log.Warn("Coordinator: Run interrupted, shutdown not requested")
		return res
	}
	if err := c.shutdown.ScheduleShutdown(ctx, delay); err != nil {
		log.Error("Coordinator: Shutdown request failed", "err", err)
		return res
	}
	log.Info("Coordinator: Shutdown scheduled", "delay", delay)
	res.ShutdownScheduled = true
	return res
}

// runMuted wraps the steps in a mute scope. The unmute runs on every exit
// path, panics included, and only if the mute succeeded.
func (c *Coordinator) runMuted(ctx context.Context, cfg protocol.RunConfig, log logger.Logger) (steps []protocol.StepResult, muted bool) {
	if cfg.MuteDuringRun && c.muter != nil {
		if err := c.muter.SetMuted(ctx, true); err != nil {
			log.Warn("Coordinator: Mute failed, running unmuted", "err", err)
		} else {
			muted = true
			defer func() {
				// the run context may already be cancelled
				if err := c.muter.SetMuted(context.WithoutCancel(ctx), false); err != nil {
					log.Error("Coordinator: Unmute failed", "err", err)
				}
			}()
		}
	}
	return c.runSteps(ctx, cfg, log), muted
}

func (c *Coordinator) runSteps(ctx context.Context, cfg protocol.RunConfig, log logger.Logger) []protocol.StepResult {
	results := make([]protocol.StepResult, 0, len(cfg.Steps))
	for i, step := range cfg.Steps {
		if err := ctx.Err(); err != nil {
			for _, rest := range cfg.Steps[i:] {
				results = append(results, protocol.StepResult{Step: rest, Outcome: protocol.StepInterrupted, Err: err})
			}
			break
		}

		r := c.supervisor.Launch(ctx, step, cfg.StartTimeout)
		results = append(results, r)

		stepLog := log.With("step", i+1, "process", step.ProcessName, "outcome", r.Outcome)
		switch r.Outcome {
		case protocol.StepCompleted:
			stepLog.Info("Coordinator: Step completed", "duration", r.Duration().Round(time.Second))
		case protocol.StepStartTimedOut:
			stepLog.Warn("Coordinator: Step finished without start detection", "warnings", r.Warnings)
		default:
			stepLog.Error("Coordinator: Step failed", "err", r.Err)
		}
	}
	return results
}

// Personal.AI order the ending
