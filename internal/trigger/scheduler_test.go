package trigger_test

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/turtacn/naa/internal/platform"
	"github.com/turtacn/naa/internal/trigger"
	"github.com/turtacn/naa/pkg/protocol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNextFireTime(t *testing.T) {
	t.Parallel()
	zone := time.FixedZone("UTC+8", 8*3600)
	day := func(d, h, m, s int) time.Time { return time.Date(2026, time.October, d, h, m, s, 0, zone) }

	cases := []struct {
		scenario     string
		now          time.Time
		hour, minute int
		want         time.Time
	}{
		{"later_today", day(18, 12, 4, 55), 12, 5, day(18, 12, 5, 0)},
		{"exactly_now_rolls", day(18, 12, 5, 0), 12, 5, day(19, 12, 5, 0)},
		{"passed_today", day(18, 12, 5, 1), 12, 5, day(19, 12, 5, 0)},
		{"midnight_next_day", day(18, 23, 59, 30), 0, 0, day(19, 0, 0, 0)},
		{"one_minute_before_midnight", day(18, 23, 59, 30), 23, 59, day(19, 23, 59, 0)},
		{"month_boundary", time.Date(2026, time.October, 31, 20, 0, 0, 0, zone), 6, 30, time.Date(2026, time.November, 1, 6, 30, 0, 0, zone)},
		{"year_boundary", time.Date(2026, time.December, 31, 23, 0, 0, 0, zone), 1, 0, time.Date(2027, time.January, 1, 1, 0, 0, 0, zone)},
	}

	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			got := trigger.NextFireTime(tc.now, tc.hour, tc.minute)
			require.True(t, tc.want.Equal(got), "want %s, got %s", tc.want, got)
			require.Equal(t, zone, got.Location())
		})
	}
}

func TestNextFireTime_Properties(t *testing.T) {
	t.Parallel()
	rnd := rand.New(rand.NewSource(42))
	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	for range 2000 {
		now := base.Add(time.Duration(rnd.Int63n(int64(366 * 24 * time.Hour))))
		hour, minute := rnd.Intn(24), rnd.Intn(60)

		next := trigger.NextFireTime(now, hour, minute)
		require.True(t, next.After(now), "now=%s next=%s", now, next)
		require.LessOrEqual(t, next.Sub(now), 24*time.Hour)
		require.Equal(t, hour, next.Hour())
		require.Equal(t, minute, next.Minute())
		require.Zero(t, next.Second())
		// idempotent for a fixed now
		require.Equal(t, next, trigger.NextFireTime(now, hour, minute))

		// a daily cron line must agree
		sched, err := cron.ParseStandard(fmt.Sprintf("%d %d * * *", minute, hour))
		require.NoError(t, err)
		require.True(t, sched.Next(now).Equal(next), "cron=%s next=%s", sched.Next(now), next)
	}
}

func TestMainWait(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, time.October, 18, 12, 4, 55, 0, time.UTC)
	fire := trigger.NextFireTime(now, 12, 5)

	assert.Equal(t, time.Duration(0), trigger.MainWait(now, fire, 10*time.Second))
	assert.Equal(t, 5*time.Second, trigger.MainWait(now, fire, 0))
	assert.Equal(t, 2*time.Hour-10*time.Second, trigger.MainWait(now, now.Add(2*time.Hour), 10*time.Second))
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []time.Duration
	at    []time.Time
}

func (r *recordingNotifier) ShowCountdown(_ context.Context, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, d)
	r.at = append(r.at, time.Now())
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestWaitForTrigger_TimerElapsed(t *testing.T) {
	t.Parallel()
	sig := trigger.NewSignal()
	n := &recordingNotifier{}
	begin := time.Now()
	fire := begin.Add(120 * time.Millisecond)

	got, err := trigger.WaitForTrigger(t.Context(), fire, 50*time.Millisecond, sig, n)
	require.NoError(t, err)

	require.Equal(t, protocol.TimerElapsed, got.Outcome)
	require.True(t, got.Noticed)
	require.False(t, got.FiredAt.Before(fire))
	require.Equal(t, 1, n.count())
	require.LessOrEqual(t, n.calls[0], 50*time.Millisecond)
	// countdown starts at the end of the main wait, not before
	require.GreaterOrEqual(t, n.at[0].Sub(begin), 60*time.Millisecond)
}

func TestWaitForTrigger_InsideNoticeWindow(t *testing.T) {
	t.Parallel()
	// scaled 12:04:55 scenario: fire in 50ms with a 100ms notice
	sig := trigger.NewSignal()
	n := &recordingNotifier{}
	begin := time.Now()
	fire := begin.Add(50 * time.Millisecond)

	got, err := trigger.WaitForTrigger(t.Context(), fire, 100*time.Millisecond, sig, n)
	require.NoError(t, err)

	require.Equal(t, protocol.TimerElapsed, got.Outcome)
	require.Equal(t, 1, n.count())
	require.Less(t, n.at[0].Sub(begin), 40*time.Millisecond, "countdown must start right away")
	require.LessOrEqual(t, n.calls[0], 50*time.Millisecond)
	require.GreaterOrEqual(t, time.Since(begin), 50*time.Millisecond)
}

func TestWaitForTrigger_ManualDuringMainWait(t *testing.T) {
	t.Parallel()
	sig := trigger.NewSignal()
	n := &recordingNotifier{}
	fire := time.Now().Add(2 * time.Hour)
	mainWait := trigger.MainWait(time.Now(), fire, 10*time.Second)

	go func() {
		time.Sleep(20 * time.Millisecond)
		sig.Raise()
	}()

	begin := time.Now()
	got, err := trigger.WaitForTrigger(t.Context(), fire, 10*time.Second, sig, n)
	require.NoError(t, err)

	elapsed := time.Since(begin)
	require.Equal(t, protocol.ManuallyTriggered, got.Outcome)
	require.False(t, got.Noticed)
	require.Zero(t, n.count())
	require.Less(t, elapsed, mainWait)
	require.Less(t, elapsed, time.Second)
	require.False(t, sig.Pending(), "request must be consumed")
}

func TestWaitForTrigger_PendingRequest(t *testing.T) {
	t.Parallel()
	sig := trigger.NewSignal()
	sig.Raise()

	got, err := trigger.WaitForTrigger(t.Context(), time.Now().Add(time.Hour), 0, sig, nil)
	require.NoError(t, err)
	require.Equal(t, protocol.ManuallyTriggered, got.Outcome)
	require.False(t, sig.Pending())
}

func TestWaitForTrigger_ManualDuringCountdown(t *testing.T) {
	t.Parallel()
	sig := trigger.NewSignal()
	var (
		once      sync.Once
		noticeCtx context.Context
	)
	n := trigger.NotifierFunc(func(ctx context.Context, _ time.Duration) {
		once.Do(func() {
			noticeCtx = ctx
			go func() {
				time.Sleep(20 * time.Millisecond)
				sig.Raise()
			}()
		})
	})

	begin := time.Now()
	got, err := trigger.WaitForTrigger(t.Context(), begin.Add(time.Second), time.Second, sig, n)
	require.NoError(t, err)
	require.Equal(t, protocol.ManuallyTriggered, got.Outcome)
	require.True(t, got.Noticed)
	require.Less(t, time.Since(begin), 500*time.Millisecond)

	// the countdown is told to stop as soon as the run is triggered
	require.NotNil(t, noticeCtx)
	require.ErrorIs(t, noticeCtx.Err(), context.Canceled)
	require.NoError(t, t.Context().Err())
}

func TestWaitForTrigger_ConsoleCountdownStopsOnRunNow(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	countdown := platform.NewConsoleCountdown(&buf).WithTick(10 * time.Millisecond)
	sig := trigger.NewSignal()
	raise := time.AfterFunc(25*time.Millisecond, sig.Raise)
	defer raise.Stop()

	begin := time.Now()
	got, err := trigger.WaitForTrigger(t.Context(), begin.Add(200*time.Millisecond), 200*time.Millisecond, sig, countdown)
	require.NoError(t, err)
	require.Equal(t, protocol.ManuallyTriggered, got.Outcome)

	countdown.Wait()
	require.Less(t, time.Since(begin), 150*time.Millisecond, "countdown kept ticking after the trigger")

	out := buf.String()
	require.Contains(t, out, "NAA run starts in")
	require.NotContains(t, out, "starting now")
	require.LessOrEqual(t, strings.Count(out, "starts in"), 5)
}

func TestWaitForTrigger_ConsoleCountdownEndsOnTimer(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	countdown := platform.NewConsoleCountdown(&buf).WithTick(10 * time.Millisecond)

	got, err := trigger.WaitForTrigger(t.Context(), time.Now().Add(40*time.Millisecond), 30*time.Millisecond, trigger.NewSignal(), countdown)
	require.NoError(t, err)
	require.Equal(t, protocol.TimerElapsed, got.Outcome)

	countdown.Wait()
	require.Equal(t, 1, strings.Count(buf.String(), "NAA run starting now"))
}

func TestWaitForTrigger_Cancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Millisecond)
	defer cancel()

	_, err := trigger.WaitForTrigger(ctx, time.Now().Add(time.Hour), time.Second, trigger.NewSignal(), nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitForTrigger_Rearm(t *testing.T) {
	t.Parallel()
	sig := trigger.NewSignal()
	sig.Raise()

	first, err := trigger.WaitForTrigger(t.Context(), time.Now().Add(time.Hour), 0, sig, nil)
	require.NoError(t, err)
	require.Equal(t, protocol.ManuallyTriggered, first.Outcome)

	// the consumed request must not pre-empt the next cycle
	second, err := trigger.WaitForTrigger(t.Context(), time.Now().Add(30*time.Millisecond), 0, sig, nil)
	require.NoError(t, err)
	require.Equal(t, protocol.TimerElapsed, second.Outcome)
}

func TestSignal(t *testing.T) {
	t.Parallel()
	sig := trigger.NewSignal()
	require.False(t, sig.Pending())

	sig.Raise()
	sig.Raise() // idempotent, never blocks
	require.True(t, sig.Pending())

	require.True(t, sig.Clear())
	require.False(t, sig.Clear())
	require.False(t, sig.Pending())
}
