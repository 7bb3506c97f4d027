package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/naa/internal/control"
	"github.com/turtacn/naa/internal/trigger"
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Ask the running scheduler to start the sequence now",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := send(cmd.Context(), control.CmdRunNow); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Run requested")
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := send(cmd.Context(), control.CmdShutdown); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Shutdown requested")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the running scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := send(cmd.Context(), control.CmdStatus)
		if err != nil {
			return err
		}
		st := resp.Status
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "State:     %s\n", st.State)
		if !st.NextFire.IsZero() {
			fmt.Fprintf(out, "Next run:  %s (in %s)\n", st.NextFire.Format(time.DateTime), time.Until(st.NextFire).Round(time.Second))
		}
		if st.RunPending {
			fmt.Fprintln(out, "Run-now request pending")
		}
		if st.LastRunID != "" {
			fmt.Fprintf(out, "Last run:  %s finished %s, %d failed\n", st.LastRunID, st.LastRunEnd.Format(time.DateTime), st.LastFailed)
		}
		return nil
	},
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Print the next scheduled run time",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		now := time.Now()
		next := trigger.NextFireTime(now, cfg.RunHour, cfg.RunMinute)
		fmt.Fprintf(cmd.OutOrStdout(), "Next run: %s (in %s)\n", next.Format(time.DateTime), next.Sub(now).Round(time.Second))
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := cfg.YAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	for _, c := range []*cobra.Command{triggerCmd, stopCmd, statusCmd} {
		c.Flags().StringVar(&socketPath, "socket", "", "control socket path (default: control_socket from the config)")
	}
}

// send resolves the control socket and delivers one command.
func send(ctx context.Context, command string) (control.Response, error) {
	path := socketPath
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return control.Response{}, err
		}
		path = cfg.ControlSocket
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return control.Send(ctx, path, command)
}

// Personal.AI order the ending
