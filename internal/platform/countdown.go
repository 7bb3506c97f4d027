package platform

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

// ConsoleCountdown prints a ticking countdown to a terminal. ShowCountdown
// returns immediately; the ticking runs in its own goroutine and stops
// silently when ctx is cancelled before the deadline.
type ConsoleCountdown struct {
	w    io.Writer
	tick time.Duration
	wg   sync.WaitGroup
}

func NewConsoleCountdown(w io.Writer) *ConsoleCountdown {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleCountdown{w: w, tick: time.Second}
}

// WithTick changes the refresh period. Used by tests.
func (c *ConsoleCountdown) WithTick(d time.Duration) *ConsoleCountdown {
	if d > 0 {
		c.tick = d
	}
	return c
}

func (c *ConsoleCountdown) ShowCountdown(ctx context.Context, d time.Duration) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		deadline := time.Now().Add(d)
		ticker := time.NewTicker(c.tick)
		defer ticker.Stop()

		for {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				color.New(color.FgGreen, color.Bold).Fprintln(c.w, "NAA run starting now")
				return
			}
			color.New(color.FgYellow).Fprintf(c.w, "NAA run starts in %s\n", formatRemaining(remaining))
			select {
			case <-ctx.Done():
				if time.Until(deadline) <= 0 {
					color.New(color.FgGreen, color.Bold).Fprintln(c.w, "NAA run starting now")
				}
				return
			case <-ticker.C:
			}
		}
	}()
}

// Wait blocks until every running countdown has finished.
func (c *ConsoleCountdown) Wait() {
	c.wg.Wait()
}

func formatRemaining(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%dm%02ds", secs/60, secs%60)
}

// Personal.AI order the ending
