package platform

import (
	"context"
	"math"
	"runtime"
	"strconv"
	"time"

	naaerrors "github.com/turtacn/naa/pkg/errors"
)

// CommandMuter toggles the system output mute through a platform command.
// The toggle is process-wide and not reference counted.
type CommandMuter struct {
	goos string
	run  CommandRunner
}

func NewMuter() *CommandMuter {
	return &CommandMuter{goos: runtime.GOOS, run: ExecCommand}
}

// WithRunner replaces the command runner, for tests and dry runs.
func (m *CommandMuter) WithRunner(run CommandRunner) *CommandMuter {
	m.run = run
	return m
}

func (m *CommandMuter) SetMuted(ctx context.Context, muted bool) error {
	argv, ok := muteCommand(m.goos, muted)
	if !ok {
		return naaerrors.New(naaerrors.ErrCodeUnsupported, "SetMuted", "no mute command for "+m.goos, nil)
	}
	if _, err := m.run(ctx, argv[0], argv[1:]...); err != nil {
		return naaerrors.New(naaerrors.ErrCodeMuteFailed, "SetMuted", "mute command failed", err)
	}
	return nil
}

func muteCommand(goos string, muted bool) ([]string, bool) {
	flag := "0"
	if muted {
		flag = "1"
	}
	switch goos {
	case "linux", "freebsd", "openbsd":
		return []string{"pactl", "set-sink-mute", "@DEFAULT_SINK@", flag}, true
	case "darwin":
		return []string{"osascript", "-e", "set volume output muted " + strconv.FormatBool(muted)}, true
	case "windows":
		return []string{"nircmd.exe", "mutesysvolume", flag}, true
	default:
		return nil, false
	}
}

// CommandShutdown asks the OS to power off after a delay and returns at once.
type CommandShutdown struct {
	goos string
	run  CommandRunner
}

func NewShutdown() *CommandShutdown {
	return &CommandShutdown{goos: runtime.GOOS, run: ExecCommand}
}

func (s *CommandShutdown) WithRunner(run CommandRunner) *CommandShutdown {
	s.run = run
	return s
}

func (s *CommandShutdown) ScheduleShutdown(ctx context.Context, delay time.Duration) error {
	argv, ok := shutdownCommand(s.goos, delay)
	if !ok {
		return naaerrors.New(naaerrors.ErrCodeUnsupported, "ScheduleShutdown", "no shutdown command for "+s.goos, nil)
	}
	if _, err := s.run(ctx, argv[0], argv[1:]...); err != nil {
		return naaerrors.New(naaerrors.ErrCodeShutdownFail, "ScheduleShutdown", "shutdown command failed", err)
	}
	return nil
}

// shutdownCommand builds the delayed power-off command. Unix shutdown only
// takes minutes, so the delay is rounded up.
func shutdownCommand(goos string, delay time.Duration) ([]string, bool) {
	delay = max(0, delay)
	switch goos {
	case "windows":
		secs := int(math.Ceil(delay.Seconds()))
		return []string{"shutdown", "-s", "-t", strconv.Itoa(secs)}, true
	case "linux", "darwin", "freebsd", "openbsd":
		mins := int(math.Ceil(delay.Minutes()))
		if mins == 0 {
			return []string{"shutdown", "-h", "now"}, true
		}
		return []string{"shutdown", "-h", "+" + strconv.Itoa(mins)}, true
	default:
		return nil, false
	}
}

// Personal.AI order the ending
