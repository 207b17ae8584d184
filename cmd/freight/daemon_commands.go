package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"freight/internal/daemonctl"
	"freight/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the freight daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonctl.ResolveDaemonBinary()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonctl.LaunchOptions{ConfigPath: ctx.configPath()},
				10*time.Second,
			)
			if err != nil {
				return err
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the freight daemon (completely terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var follow bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and migration run status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for {
				status, err := fetchStatus(ctx)
				if err != nil {
					return err
				}
				renderStatus(stdout, status, colorize)

				fmt.Fprintln(stdout)
				for _, line := range renderSectionHeader("Environment", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, line := range environmentStatusLines(ctx.configValue(), colorize) {
					fmt.Fprintln(stdout, line)
				}

				if !follow || status.Run == nil || !status.Run.Active {
					return nil
				}
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-time.After(2 * time.Second):
				}
				fmt.Fprintln(stdout)
			}
		},
	}
	statusCmd.Flags().BoolVarP(&follow, "follow", "f", false, "Refresh until the active run finishes")

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

// fetchStatus returns the daemon status, or an offline placeholder when
// the IPC socket is unreachable.
func fetchStatus(ctx *commandContext) (*ipc.StatusResponse, error) {
	var status *ipc.StatusResponse
	err := ctx.withClient(func(client *ipc.Client) error {
		resp, err := client.Status()
		if err != nil {
			return err
		}
		status = resp
		return nil
	})
	if err != nil {
		return &ipc.StatusResponse{}, nil
	}
	return status, err
}

func renderStatus(stdout io.Writer, status *ipc.StatusResponse, colorize bool) {
	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(stdout, line)
	}
	if status.Running {
		fmt.Fprintln(stdout, renderStatusLine("Freight", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
		fmt.Fprintln(stdout, renderStatusLine("Control socket", statusInfo, status.ControlSocket, colorize))
		fmt.Fprintln(stdout, renderStatusLine("History DB", statusInfo, status.HistoryDBPath, colorize))
		fmt.Fprintln(stdout, renderStatusLine("Workers", statusInfo, fmt.Sprintf("%d known", status.Workers), colorize))
	} else {
		fmt.Fprintln(stdout, renderStatusLine("Freight", statusWarn, "Not running (run `freight start`)", colorize))
	}

	if status.Run == nil {
		return
	}

	fmt.Fprintln(stdout)
	title := "Last Run"
	if status.Run.Active {
		title = "Active Run"
	}
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout, renderStatusLine("Run", statusInfo, status.Run.ID, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Source", statusInfo, status.Run.SourceDir, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Destination", statusInfo, status.Run.DestDir, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Started", statusInfo, formatAge(status.Run.StartedAt), colorize))
	if status.Run.Error != "" {
		fmt.Fprintln(stdout, renderStatusLine("Result", statusError, status.Run.Error, colorize))
	}
	if len(status.Run.Jobs) > 0 {
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, renderJobsTable(status.Run.Jobs))
	}
}

func renderJobsTable(jobs []ipc.Job) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			job.Name,
			job.State,
			pidCell(job.ScanPID),
			pidCell(job.MigratePID),
			formatAge(job.UpdatedAt),
		})
	}
	return renderTable(
		[]string{"Directory", "State", "Scan PID", "Migrate PID", "Updated"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func pidCell(pid int) string {
	if pid <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d", pid)
}
