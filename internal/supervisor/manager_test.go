package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/turtacn/naa/internal/watcher"
	naaerrors "github.com/turtacn/naa/pkg/errors"
	"github.com/turtacn/naa/pkg/logger"
	"github.com/turtacn/naa/pkg/protocol"
)

const tick = 5 * time.Millisecond

type fakeLauncher struct {
	mu      sync.Mutex
	started []string
	err     error
}

func (f *fakeLauncher) Start(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, path)
	return f.err
}

// scriptedTable replays presences in order and then repeats the last one.
type scriptedTable struct {
	mu     sync.Mutex
	script []watcher.Presence
	calls  int
	seen   []watcher.Presence
}

func (s *scriptedTable) Check(_ context.Context, _ string) watcher.Presence {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	s.calls++
	p := s.script[i]
	s.seen = append(s.seen, p)
	return p
}

func newTestSupervisor(l Launcher, w PresenceChecker) *ProcessSupervisor {
	return New(l, w, logger.Discard()).WithPollInterval(tick)
}

var stepA = protocol.ProgramStep{Path: "/opt/a/launcher", ProcessName: "A.exe"}

func TestLaunch_AbsentPresentAbsent(t *testing.T) {
	t.Parallel()
	table := &scriptedTable{script: []watcher.Presence{
		watcher.Absent, watcher.Absent, watcher.Present, watcher.Present, watcher.Present, watcher.Absent,
	}}
	launcher := &fakeLauncher{}
	ps := newTestSupervisor(launcher, table)

	res := ps.Launch(t.Context(), stepA, time.Second)

	require.Equal(t, protocol.StepCompleted, res.Outcome)
	require.NoError(t, res.Err)
	require.Empty(t, res.Warnings)
	require.Equal(t, []string{stepA.Path}, launcher.started)
	// returned exactly on the second absence, after presence was observed
	require.Equal(t, 6, table.calls)
	require.Contains(t, table.seen, watcher.Present)
	require.False(t, res.Finished.Before(res.Started))
}

func TestLaunch_StartTimeoutIsNonFatal(t *testing.T) {
	t.Parallel()
	table := &scriptedTable{script: []watcher.Presence{watcher.Absent}}
	ps := newTestSupervisor(&fakeLauncher{}, table)

	begin := time.Now()
	res := ps.Launch(t.Context(), stepA, 40*time.Millisecond)

	require.Equal(t, protocol.StepStartTimedOut, res.Outcome)
	require.NoError(t, res.Err)
	require.Len(t, res.Warnings, 1)
	require.Contains(t, res.Warnings[0], "did not appear")
	require.GreaterOrEqual(t, time.Since(begin), 40*time.Millisecond)
	require.NotContains(t, table.seen, watcher.Present)
}

func TestLaunch_LateStartWithinTimeout(t *testing.T) {
	t.Parallel()
	script := make([]watcher.Presence, 0, 10)
	for range 5 {
		script = append(script, watcher.Absent)
	}
	script = append(script, watcher.Present, watcher.Absent)
	table := &scriptedTable{script: script}
	ps := newTestSupervisor(&fakeLauncher{}, table)

	res := ps.Launch(t.Context(), stepA, time.Second)
	require.Equal(t, protocol.StepCompleted, res.Outcome)
	require.Equal(t, 7, table.calls)
}

func TestLaunch_LaunchFailureSkipsPolling(t *testing.T) {
	t.Parallel()
	table := &scriptedTable{script: []watcher.Presence{watcher.Present}}
	ps := newTestSupervisor(&fakeLauncher{err: errors.New("exec: file not found")}, table)

	res := ps.Launch(t.Context(), stepA, time.Second)

	require.Equal(t, protocol.StepLaunchFailed, res.Outcome)
	require.Error(t, res.Err)
	require.True(t, naaerrors.HasCode(res.Err, naaerrors.ErrCodeLaunchFailed))
	require.ErrorContains(t, res.Err, "file not found")
	require.Zero(t, table.calls)
}

func TestLaunch_UnknownIsNotAbsence(t *testing.T) {
	t.Parallel()
	table := &scriptedTable{script: []watcher.Presence{
		watcher.Unknown, watcher.Present, watcher.Unknown, watcher.Unknown, watcher.Absent,
	}}
	ps := newTestSupervisor(&fakeLauncher{}, table)

	res := ps.Launch(t.Context(), stepA, time.Second)
	require.Equal(t, protocol.StepCompleted, res.Outcome)
	require.Equal(t, 5, table.calls)
}

func TestLaunch_InterruptedDuringExitWait(t *testing.T) {
	t.Parallel()
	table := &scriptedTable{script: []watcher.Presence{watcher.Present}}
	ps := newTestSupervisor(&fakeLauncher{}, table)

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	res := ps.Launch(ctx, stepA, time.Second)
	require.Equal(t, protocol.StepInterrupted, res.Outcome)
	require.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

func TestLaunch_InterruptedDuringStartWait(t *testing.T) {
	t.Parallel()
	table := &scriptedTable{script: []watcher.Presence{watcher.Absent}}
	ps := newTestSupervisor(&fakeLauncher{}, table)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	res := ps.Launch(ctx, stepA, time.Hour)
	require.Equal(t, protocol.StepInterrupted, res.Outcome)
	require.ErrorIs(t, res.Err, context.Canceled)
}
