// Package trigger computes the daily fire time and waits for it, or for a
// manual run-now request, whichever comes first.
package trigger

import (
	"context"
	"time"

	"github.com/turtacn/naa/pkg/protocol"
)

// Notifier shows the pre-trigger countdown. It must not block. ctx is
// cancelled once the wait is over, whichever way it ended.
type Notifier interface {
	ShowCountdown(ctx context.Context, d time.Duration)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, d time.Duration)

func (f NotifierFunc) ShowCountdown(ctx context.Context, d time.Duration) { f(ctx, d) }

// Trigger describes how a wait ended.
type Trigger struct {
	Outcome  protocol.TriggerOutcome
	FireTime time.Time
	FiredAt  time.Time
	// Noticed is true when the countdown was shown before returning.
	Noticed bool
}

// NextFireTime returns today at hour:minute in now's location, or the same
// wall-clock time on the next day when that is not after now.
func NextFireTime(now time.Time, hour, minute int) time.Time {
	y, m, d := now.Date()
	next := time.Date(y, m, d, hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(y, m, d+1, hour, minute, 0, 0, now.Location())
	}
	return next
}

// MainWait is the time to wait before the countdown starts: fireTime minus
// now minus preNotice, never negative.
func MainWait(now, fireTime time.Time, preNotice time.Duration) time.Duration {
	return max(0, fireTime.Sub(now)-preNotice)
}

// WaitForTrigger blocks until fireTime or until sig is raised.
//
// A request raised before the countdown returns ManuallyTriggered at once,
// without a notice. Otherwise the countdown is shown preNotice before
// fireTime and the wait continues until fireTime or a request. The consumed
// request is cleared. ctx cancellation returns ctx.Err().
func WaitForTrigger(ctx context.Context, fireTime time.Time, preNotice time.Duration, sig *Signal, n Notifier) (Trigger, error) {
	t := Trigger{FireTime: fireTime}

	if sig.consume() {
		return t.fire(protocol.ManuallyTriggered), nil
	}

	main := time.NewTimer(MainWait(time.Now(), fireTime, preNotice))
	defer main.Stop()

	select {
	case <-ctx.Done():
		return t, ctx.Err()
	case <-sig.C():
		return t.fire(protocol.ManuallyTriggered), nil
	case <-main.C:
	}

	remaining := max(0, time.Until(fireTime))
	// the countdown stops when the wait ends, so a run-now does not leave it ticking
	nctx, ncancel := context.WithCancel(ctx)
	defer ncancel()
	if n != nil {
		n.ShowCountdown(nctx, min(remaining, preNotice))
	}
	t.Noticed = true

	if sig.consume() {
		return t.fire(protocol.ManuallyTriggered), nil
	}

	rest := time.NewTimer(remaining)
	defer rest.Stop()

	select {
	case <-ctx.Done():
		return t, ctx.Err()
	case <-sig.C():
		return t.fire(protocol.ManuallyTriggered), nil
	case <-rest.C:
		return t.fire(protocol.TimerElapsed), nil
	}
}

func (t Trigger) fire(o protocol.TriggerOutcome) Trigger {
	t.Outcome = o
	t.FiredAt = time.Now()
	return t
}

// Personal.AI order the ending
