package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/naa/internal/control"
	"github.com/turtacn/naa/internal/monitor"
	"github.com/turtacn/naa/internal/orchestrator"
	naaerrors "github.com/turtacn/naa/pkg/errors"
	"github.com/turtacn/naa/pkg/logger"
	"github.com/turtacn/naa/pkg/protocol"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the daily scheduler in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := requirePrivilege(cfg); err != nil {
			return err
		}
		applyAutostart(ctx, cfg)

		engine, countdown := buildEngine(cfg, cmd.OutOrStdout())
		logger.Log.Info("Booting NAA scheduler", "config", cfgFile, "programs", len(cfg.ProgramList))

		g, gctx := errgroup.WithContext(ctx)
		gctx, cancel := context.WithCancel(gctx)
		defer cancel()

		// started before the control server so a shutdown request always has a loop to cancel
		engine.Start(gctx)
		g.Go(func() error {
			// a single-shot scheduler ends the whole daemon
			defer cancel()
			return engine.Wait()
		})
		g.Go(func() error {
			return control.NewServer(cfg.ControlSocket, engine, logger.Log).Serve(gctx)
		})
		g.Go(func() error {
			return forwardRunNow(gctx, engine)
		})
		if cfg.MetricsAddr != "" {
			g.Go(func() error {
				return monitor.Serve(gctx, cfg.MetricsAddr)
			})
		}

		err = g.Wait()
		countdown.Wait()
		logger.Log.Info("NAA scheduler exited")
		return err
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the program sequence once, right now",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		forwarded, err := forwardToScheduler(ctx, cfg.ControlSocket)
		if err != nil {
			return err
		}
		if forwarded {
			fmt.Fprintln(cmd.OutOrStdout(), "Scheduler is running on "+cfg.ControlSocket+", run requested there")
			return nil
		}

		if err := requirePrivilege(cfg); err != nil {
			return err
		}
		engine, countdown := buildEngine(cfg, cmd.OutOrStdout())
		res, err := engine.RunOnce(ctx)
		countdown.Wait()
		if err != nil {
			return err
		}
		printRun(cmd, res)
		return nil
	},
}

// forwardToScheduler hands a run request to a scheduler already listening on
// path. It reports false when nobody answers, so the caller may run locally.
func forwardToScheduler(ctx context.Context, path string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	_, err := control.Send(ctx, path, control.CmdRunNow)
	switch {
	case err == nil:
		logger.Log.Info("Run forwarded to the running scheduler", "socket", path)
		return true, nil
	case naaerrors.HasCode(err, naaerrors.ErrCodeControlSocket):
		logger.Log.Debug("No scheduler listening, running locally", "socket", path)
		return false, nil
	default:
		return false, err
	}
}

// forwardRunNow turns SIGHUP into a run-now request.
func forwardRunNow(ctx context.Context, engine *orchestrator.Engine) error {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ch:
			logger.Log.Info("Signal: SIGHUP received, running now")
			engine.TriggerRunNow()
		}
	}
}

func printRun(cmd *cobra.Command, res protocol.RunResult) {
	out := cmd.OutOrStdout()
	ok := color.New(color.FgGreen).SprintFunc()
	warn := color.New(color.FgYellow).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()

	fmt.Fprintf(out, "Run %s: %d steps in %s\n", res.ID, len(res.Steps), res.Finished.Sub(res.Started).Round(time.Second))
	for i, s := range res.Steps {
		var outcome string
		switch s.Outcome {
		case protocol.StepCompleted:
			outcome = ok(s.Outcome)
		case protocol.StepStartTimedOut:
			outcome = warn(s.Outcome)
		default:
			outcome = bad(s.Outcome)
		}
		fmt.Fprintf(out, "  %d. %-24s %s\n", i+1, s.Step.ProcessName, outcome)
	}
	for _, w := range res.Warnings() {
		fmt.Fprintf(out, "  %s %s\n", warn("warning:"), w)
	}
	if res.ShutdownScheduled {
		fmt.Fprintln(out, warn("Shutdown scheduled"))
	}
}

// Personal.AI order the ending
