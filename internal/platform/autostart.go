package platform

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adrg/xdg"

	"github.com/turtacn/naa/pkg/consts"
	naaerrors "github.com/turtacn/naa/pkg/errors"
)

// Autostart registers the scheduler to start at logon: a Task Scheduler
// entry on Windows, an XDG autostart entry on Linux.
type Autostart struct {
	goos    string
	command []string
	dir     string
	run     CommandRunner
}

// NewAutostart registers command (executable followed by its arguments).
func NewAutostart(command []string) *Autostart {
	return &Autostart{
		goos:    runtime.GOOS,
		command: command,
		dir:     filepath.Join(xdg.ConfigHome, "autostart"),
		run:     ExecCommand,
	}
}

// WithDir changes the XDG autostart directory.
func (a *Autostart) WithDir(dir string) *Autostart {
	a.dir = dir
	return a
}

func (a *Autostart) WithRunner(run CommandRunner) *Autostart {
	a.run = run
	return a
}

// Apply adds the entry when enabled and removes it otherwise.
func (a *Autostart) Apply(ctx context.Context, enabled bool) error {
	if len(a.command) == 0 {
		return naaerrors.New(naaerrors.ErrCodeAutostartFailed, "Autostart", "empty command", nil)
	}
	var err error
	switch a.goos {
	case "windows":
		err = a.applyTask(ctx, enabled)
	case "linux", "freebsd", "openbsd":
		err = a.applyDesktopEntry(enabled)
	default:
		return naaerrors.New(naaerrors.ErrCodeUnsupported, "Autostart", "autostart not supported on "+a.goos, nil)
	}
	if err != nil {
		return naaerrors.New(naaerrors.ErrCodeAutostartFailed, "Autostart", fmt.Sprintf("enabled=%t", enabled), err)
	}
	return nil
}

func (a *Autostart) applyTask(ctx context.Context, enabled bool) error {
	if !enabled {
		_, err := a.run(ctx, "schtasks", "/Delete", "/F", "/TN", consts.AutostartTaskName)
		return err
	}
	_, err := a.run(ctx, "schtasks", "/Create", "/F",
		"/SC", "ONLOGON",
		"/RL", "HIGHEST",
		"/TN", consts.AutostartTaskName,
		"/TR", quoteCommand(a.command))
	return err
}

func (a *Autostart) applyDesktopEntry(enabled bool) error {
	path := filepath.Join(a.dir, consts.AutostartDesktopEntry)
	if !enabled {
		err := os.Remove(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(desktopEntry(a.command)), 0o644)
}

// DesktopEntryPath is where the Linux autostart entry lives.
func (a *Autostart) DesktopEntryPath() string {
	return filepath.Join(a.dir, consts.AutostartDesktopEntry)
}

func desktopEntry(command []string) string {
	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	b.WriteString("Type=Application\n")
	b.WriteString("Name=NAA\n")
	b.WriteString("Comment=Daily program sequencer\n")
	b.WriteString("Exec=" + quoteCommand(command) + "\n")
	b.WriteString("Terminal=false\n")
	b.WriteString("X-GNOME-Autostart-enabled=true\n")
	return b.String()
}

func quoteCommand(command []string) string {
	parts := make([]string, len(command))
	for i, c := range command {
		if strings.ContainsAny(c, " \t\"") {
			c = `"` + strings.ReplaceAll(c, `"`, `\"`) + `"`
		}
		parts[i] = c
	}
	return strings.Join(parts, " ")
}

// Personal.AI order the ending
