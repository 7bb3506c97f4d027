package consts

import "time"

// SchedulerState is the lifecycle state of the daily scheduler loop.
// Only the engine goroutine moves it.
type SchedulerState string

const (
	StateIdle    SchedulerState = "IDLE"    // Not armed: before start or after a single-shot run
	StateWaiting SchedulerState = "WAITING" // Armed, waiting for the fire time or a run-now request
	StateRunning SchedulerState = "RUNNING" // Executing the program sequence
)

// Scheduler events fed into the state machine.
const (
	EventArm       = "arm"
	EventTrigger   = "trigger"
	EventRearm     = "rearm"
	EventFinish    = "finish"
	EventTerminate = "terminate"
)

// Supervision timing
const (
	PollInterval        = 1 * time.Second
	DefaultStartTimeout = 30 * time.Second
)

// Configuration defaults, written to a fresh config file.
const (
	DefaultConfigFile     = "config.json"
	DefaultRunHour        = 12
	DefaultRunMinute      = 5
	DefaultCountdown      = 10 // seconds
	DefaultShutdownDelay  = 600
	DefaultStartTimeoutS  = 30
	DefaultSocketName     = "naa.sock"
	EnvPrefix             = "NAA"
	AutostartTaskName     = "NAAAutoStart"
	AutostartDesktopEntry = "naa.desktop"
)

// Personal.AI order the ending
