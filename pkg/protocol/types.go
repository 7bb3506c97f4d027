package protocol

import (
	"fmt"
	"time"
)

// ProgramStep pairs an executable with the process name that tracks its session.
// The tracked process may differ from the launched binary (launchers, updaters).
type ProgramStep struct {
	Path        string `json:"path" yaml:"path"`
	ProcessName string `json:"process_name" yaml:"process_name"`
}

func (s ProgramStep) String() string {
	return fmt.Sprintf("%s (%s)", s.Path, s.ProcessName)
}

// RunConfig is the immutable input of one scheduling cycle.
type RunConfig struct {
	Steps         []ProgramStep
	FireHour      int
	FireMinute    int
	PreNotice     time.Duration
	StartTimeout  time.Duration
	AutoShutdown  bool
	ShutdownDelay time.Duration
	MuteDuringRun bool
	RepeatDaily   bool
}

// ShutdownAfterRun reports the delay of the post-run shutdown request, if any.
func (c RunConfig) ShutdownAfterRun() (time.Duration, bool) {
	if !c.AutoShutdown {
		return 0, false
	}
	return c.ShutdownDelay, true
}

// TriggerOutcome tells why a wait for the fire time ended.
type TriggerOutcome string

const (
	TimerElapsed      TriggerOutcome = "timer"
	ManuallyTriggered TriggerOutcome = "manual"
)

// StepOutcome is the terminal status of one supervised step.
type StepOutcome string

const (
	StepCompleted     StepOutcome = "completed"
	StepLaunchFailed  StepOutcome = "launch_failed"
	StepStartTimedOut StepOutcome = "start_timed_out" // non-fatal: exit phase still ran
	StepInterrupted   StepOutcome = "interrupted"
)

// StepResult records the supervision of one step.
type StepResult struct {
	Step     ProgramStep
	Outcome  StepOutcome
	Err      error
	Warnings []string
	Started  time.Time
	Finished time.Time
}

func (r StepResult) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// RunResult is the outcome of a whole run.
type RunResult struct {
	ID                string
	Trigger           TriggerOutcome
	Started           time.Time
	Finished          time.Time
	Steps             []StepResult
	Muted             bool
	ShutdownScheduled bool
}

// Failed counts steps that could not be launched.
func (r RunResult) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if s.Outcome == StepLaunchFailed {
			n++
		}
	}
	return n
}

// Warnings collects the step warnings, prefixed with the process name.
func (r RunResult) Warnings() []string {
	var out []string
	for _, s := range r.Steps {
		for _, w := range s.Warnings {
			out = append(out, s.Step.ProcessName+": "+w)
		}
	}
	return out
}

// Interrupted reports whether the run was cut short by termination.
func (r RunResult) Interrupted() bool {
	for _, s := range r.Steps {
		if s.Outcome == StepInterrupted {
			return true
		}
	}
	return false
}

// Personal.AI order the ending
