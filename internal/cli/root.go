package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/turtacn/naa/internal/config"
	"github.com/turtacn/naa/internal/orchestrator"
	"github.com/turtacn/naa/internal/platform"
	"github.com/turtacn/naa/internal/supervisor"
	"github.com/turtacn/naa/internal/watcher"
	"github.com/turtacn/naa/pkg/consts"
	"github.com/turtacn/naa/pkg/logger"
)

var (
	cfgFile    string
	socketPath string
)

var rootCmd = &cobra.Command{
	Use:           "naa",
	Short:         "NAA: run a fixed sequence of programs once a day",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", consts.DefaultConfigFile, "config file path (.json or .yaml)")
	rootCmd.AddCommand(startCmd, runCmd, triggerCmd, stopCmd, statusCmd, nextCmd, configCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and initializes logging from it.
func loadConfig() (config.Config, error) {
	cfg, created, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	logger.InitLogger(cfg.LogLevel, cfg.LogFormat)
	if created {
		logger.Log.Info("Wrote default configuration", "path", cfgFile)
	}
	return cfg, nil
}

// buildEngine wires the platform collaborators into a scheduler.
func buildEngine(cfg config.Config, out io.Writer) (*orchestrator.Engine, *platform.ConsoleCountdown) {
	w := watcher.New(platform.ProcessTable{}, logger.Log)
	sup := supervisor.New(platform.NewExecLauncher(logger.Log), w, logger.Log)
	coord := orchestrator.NewCoordinator(sup, platform.NewMuter(), platform.NewShutdown(), logger.Log)
	countdown := platform.NewConsoleCountdown(out)
	return orchestrator.NewEngine(cfg.RunConfig(), coord, countdown, logger.Log), countdown
}

// elevationCheck is replaced in tests.
var elevationCheck platform.ElevationCheck = platform.IsElevated

// requirePrivilege refuses to start when auto_shutdown is enabled without
// administrator rights, since the shutdown would fail only after the run.
func requirePrivilege(cfg config.Config) error {
	var needed []string
	if cfg.AutoShutdown {
		needed = append(needed, "auto_shutdown")
	}
	return platform.RequirePrivilege(elevationCheck, needed...)
}

// applyAutostart registers or removes the login entry that runs "naa start".
func applyAutostart(ctx context.Context, cfg config.Config) {
	exe, err := os.Executable()
	if err != nil {
		logger.Log.Warn("Autostart: cannot resolve executable", "err", err)
		return
	}
	path, err := filepath.Abs(cfgFile)
	if err != nil {
		path = cfgFile
	}

	err = platform.NewAutostart([]string{exe, "start", "-c", path}).Apply(ctx, cfg.AutoStartup)
	switch {
	case err == nil:
		logger.Log.Debug("Autostart: applied", "enabled", cfg.AutoStartup)
	case cfg.AutoStartup:
		logger.Log.Warn("Autostart: registration failed", "err", err)
	default:
		// removing an entry that was never there
		logger.Log.Debug("Autostart: removal skipped", "err", err)
	}
}

// Personal.AI order the ending
