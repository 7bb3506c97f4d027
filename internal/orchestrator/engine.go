package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/turtacn/naa/internal/monitor"
	"github.com/turtacn/naa/internal/trigger"
	"github.com/turtacn/naa/pkg/consts"
	"github.com/turtacn/naa/pkg/fsm"
	"github.com/turtacn/naa/pkg/logger"
	"github.com/turtacn/naa/pkg/protocol"
)

// Runner executes one run. *Coordinator is the production Runner.
type Runner interface {
	ExecuteRun(ctx context.Context, cfg protocol.RunConfig, outcome protocol.TriggerOutcome) protocol.RunResult
}

// Status is a snapshot of the scheduler for the control surface.
type Status struct {
	State      consts.SchedulerState `json:"state"`
	NextFire   time.Time             `json:"next_fire"`
	LastRunID  string                `json:"last_run_id,omitempty"`
	LastRunEnd time.Time             `json:"last_run_end"`
	LastFailed int                   `json:"last_failed"`
	RunPending bool                  `json:"run_pending"`
}

// Engine is the scheduler loop. It owns the scheduler state; other
// goroutines only raise run-now or shutdown requests and read Status.
type Engine struct {
	cfg      protocol.RunConfig
	fsm      *fsm.StateMachine
	runner   Runner
	notifier trigger.Notifier
	signal   *trigger.Signal
	logger   logger.Logger

	mu       sync.RWMutex
	nextFire time.Time
	lastRun  *protocol.RunResult
	cancel   context.CancelFunc
	done     chan struct{}
	err      error
}

func NewEngine(cfg protocol.RunConfig, r Runner, n trigger.Notifier, log logger.Logger) *Engine {
	if log == nil {
		log = logger.Log
	}
	e := &Engine{
		cfg:      cfg,
		fsm:      fsm.New(fsm.State(consts.StateIdle)),
		runner:   r,
		notifier: n,
		signal:   trigger.NewSignal(),
		logger:   log.With("component", "scheduler"),
	}
	e.setupFSM()
	return e
}

func (e *Engine) setupFSM() {
	idle, waiting, running := fsm.State(consts.StateIdle), fsm.State(consts.StateWaiting), fsm.State(consts.StateRunning)

	e.fsm.AddTransition(idle, waiting, consts.EventArm, nil)
	e.fsm.AddTransition(waiting, running, consts.EventTrigger, nil)
	e.fsm.AddTransition(running, waiting, consts.EventRearm, nil)
	e.fsm.AddTransition(running, idle, consts.EventFinish, nil)
	e.fsm.AddTransition(waiting, idle, consts.EventTerminate, nil)

	e.fsm.OnTransition(func(from, to fsm.State, event fsm.Event) {
		e.logger.Debug("Scheduler: Transition", "from", from, "to", to, "event", event)
		monitor.SetState(consts.SchedulerState(to))
	})
	monitor.SetState(consts.StateIdle)
}

// Run drives IDLE → WAITING → RUNNING until ctx is cancelled, or after the
// first run when the configuration is single-shot. It returns nil on a
// normal stop.
func (e *Engine) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Scheduler: Panic recovered", "panic", r)
			err = fmt.Errorf("scheduler panic: %v", r)
		}
	}()

	if err := e.fsm.Fire(consts.EventArm); err != nil {
		return err
	}
	e.logger.Info("Scheduler: Started", "repeat_daily", e.cfg.RepeatDaily, "steps", len(e.cfg.Steps))

	for {
		fireTime := trigger.NextFireTime(time.Now(), e.cfg.FireHour, e.cfg.FireMinute)
		e.setNextFire(fireTime)
		e.logger.Info("Scheduler: Waiting for trigger", "fire_time", fireTime.Format(time.RFC3339), "countdown", e.cfg.PreNotice)

		trg, err := trigger.WaitForTrigger(ctx, fireTime, e.cfg.PreNotice, e.signal, e.notifier)
		if err != nil {
			e.setNextFire(time.Time{})
			e.logger.Info("Scheduler: Stopped while waiting")
			return e.fsm.Fire(consts.EventTerminate)
		}
		if err := e.fsm.Fire(consts.EventTrigger); err != nil {
			return err
		}
		e.setNextFire(time.Time{})
		e.execute(ctx, trg)

		if ctx.Err() != nil {
			e.logger.Info("Scheduler: Stopped after interrupted run")
			return e.fsm.Fire(consts.EventFinish)
		}
		if !e.cfg.RepeatDaily {
			e.logger.Info("Scheduler: Single-shot run done")
			return e.fsm.Fire(consts.EventFinish)
		}
		if err := e.fsm.Fire(consts.EventRearm); err != nil {
			return err
		}
	}
}

// RunOnce performs one immediate run from IDLE and returns to IDLE.
func (e *Engine) RunOnce(ctx context.Context) (protocol.RunResult, error) {
	if err := e.fsm.Fire(consts.EventArm); err != nil {
		return protocol.RunResult{}, err
	}
	if err := e.fsm.Fire(consts.EventTrigger); err != nil {
		return protocol.RunResult{}, err
	}
	res := e.execute(ctx, trigger.Trigger{Outcome: protocol.ManuallyTriggered, FiredAt: time.Now()})
	return res, e.fsm.Fire(consts.EventFinish)
}

func (e *Engine) execute(ctx context.Context, trg trigger.Trigger) protocol.RunResult {
	e.logger.Info("Scheduler: Triggered", "outcome", trg.Outcome)
	if !trg.Noticed && e.notifier != nil {
		e.notifier.ShowCountdown(ctx, 0)
	}

	res := e.runner.ExecuteRun(ctx, e.cfg, trg.Outcome)

	e.mu.Lock()
	e.lastRun = &res
	e.mu.Unlock()

	if e.signal.Clear() {
		e.logger.Info("Scheduler: Dropped run-now request raised during the run")
	}
	return res
}

// Start runs the loop in its own goroutine.
func (e *Engine) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	e.mu.Lock()
	e.cancel, e.done = cancel, done
	e.mu.Unlock()

	go func() {
		defer close(done)
		err := e.Run(ctx)
		e.mu.Lock()
		e.err = err
		e.mu.Unlock()
	}()
}

// Wait blocks until the loop started by Start returns.
func (e *Engine) Wait() error {
	e.mu.RLock()
	done := e.done
	e.mu.RUnlock()
	if done == nil {
		return nil
	}
	<-done

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.err
}

// Stop cancels the loop and waits for it, bounded by ctx.
func (e *Engine) Stop(ctx context.Context) error {
	e.RequestShutdown()

	e.mu.RLock()
	done := e.done
	e.mu.RUnlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		e.logger.Info("Scheduler: Stopped")
		return e.Wait()
	case <-ctx.Done():
		e.logger.Warn("Scheduler: Stop timed out")
		return ctx.Err()
	}
}

// TriggerRunNow requests an immediate run. Requests raised while a run is
// in progress are dropped when it ends.
func (e *Engine) TriggerRunNow() {
	e.logger.Info("Scheduler: Run-now requested")
	e.signal.Raise()
}

// RequestShutdown cancels the loop without waiting.
func (e *Engine) RequestShutdown() {
	e.mu.RLock()
	cancel := e.cancel
	e.mu.RUnlock()
	if cancel != nil {
		e.logger.Info("Scheduler: Shutdown requested")
		cancel()
	}
}

func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Status{
		State:      consts.SchedulerState(e.fsm.Current()),
		NextFire:   e.nextFire,
		RunPending: e.signal.Pending(),
	}
	if e.lastRun != nil {
		s.LastRunID = e.lastRun.ID
		s.LastRunEnd = e.lastRun.Finished
		s.LastFailed = e.lastRun.Failed()
	}
	return s
}

func (e *Engine) setNextFire(t time.Time) {
	e.mu.Lock()
	e.nextFire = t
	e.mu.Unlock()
	if !t.IsZero() {
		monitor.SetNextFire(t)
	}
}

// Personal.AI order the ending
