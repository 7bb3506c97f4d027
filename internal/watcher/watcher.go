// Package watcher answers whether a named process is present in the OS process table.
package watcher

import (
	"context"
	"runtime"
	"strings"

	"github.com/turtacn/naa/pkg/logger"
)

// ProcessTable lists the names of the live processes.
type ProcessTable interface {
	ListNames(ctx context.Context) (map[string]struct{}, error)
}

// Presence is the result of one process table lookup.
type Presence int

const (
	Unknown Presence = iota // the table could not be read this tick
	Absent
	Present
)

func (p Presence) String() string {
	switch p {
	case Absent:
		return "absent"
	case Present:
		return "present"
	default:
		return "unknown"
	}
}

// Watcher matches process names exactly. Several processes sharing a name
// count as one presence.
type Watcher struct {
	table    ProcessTable
	foldCase bool
	logger   logger.Logger
}

// New creates a Watcher over table. Names are compared case-insensitively on
// Windows, where image names are.
func New(table ProcessTable, log logger.Logger) *Watcher {
	if log == nil {
		log = logger.Log
	}
	return &Watcher{
		table:    table,
		foldCase: runtime.GOOS == "windows",
		logger:   log.With("component", "watcher"),
	}
}

// WithFoldCase overrides the platform default for name comparison.
func (w *Watcher) WithFoldCase(fold bool) *Watcher {
	w.foldCase = fold
	return w
}

// Check looks name up in the process table. Enumeration errors yield Unknown
// and are never returned to the caller.
func (w *Watcher) Check(ctx context.Context, name string) Presence {
	names, err := w.table.ListNames(ctx)
	if err != nil {
		w.logger.Debug("process table unavailable", "process", name, "error", err)
		return Unknown
	}

	if _, ok := names[name]; ok {
		return Present
	}
	if w.foldCase {
		for n := range names {
			if strings.EqualFold(n, name) {
				return Present
			}
		}
	}
	return Absent
}

// IsRunning reports whether name is known to be running right now.
func (w *Watcher) IsRunning(ctx context.Context, name string) bool {
	return w.Check(ctx, name) == Present
}

// Personal.AI order the ending
