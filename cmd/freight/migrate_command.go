package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"freight/internal/daemonctl"
	"freight/internal/ipc"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var noStart bool

	cmd := &cobra.Command{
		Use:   "migrate [source-dir] [dest-dir]",
		Short: "Start a migration run",
		Long: "Start a migration run over the immediate subdirectories of the source " +
			"root. Arguments override the configured paths; with no arguments the " +
			"configured source and destination are used.",
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()

			var source, dest string
			if len(args) > 0 {
				abs, err := filepath.Abs(args[0])
				if err != nil {
					return fmt.Errorf("resolve source path: %w", err)
				}
				source = abs
			}
			if len(args) > 1 {
				abs, err := filepath.Abs(args[1])
				if err != nil {
					return fmt.Errorf("resolve dest path: %w", err)
				}
				dest = abs
			}

			if !noStart {
				exe, err := daemonctl.ResolveDaemonBinary()
				if err != nil {
					return err
				}
				if _, err := daemonctl.EnsureStarted(
					ctx.socketPath(),
					exe,
					daemonctl.LaunchOptions{ConfigPath: ctx.configPath()},
					10*time.Second,
				); err != nil {
					return err
				}
			}

			var runID string
			err := ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Migrate(source, dest)
				if err != nil {
					return err
				}
				if !resp.Accepted {
					return errors.New(resp.Message)
				}
				runID = resp.RunID
				return nil
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(stdout, "Migration run %s started\n", runID)
			if !follow {
				return nil
			}
			return followRun(ctx, cmd, runID)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Wait for the run and report per-directory results")
	cmd.Flags().BoolVar(&noStart, "no-start", false, "Fail instead of launching the daemon when it is not running")
	return cmd
}

// followRun polls the daemon until the run leaves the active state, then
// prints the final job table.
func followRun(ctx *commandContext, cmd *cobra.Command, runID string) error {
	stdout := cmd.OutOrStdout()
	for {
		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-time.After(time.Second):
		}

		var run *ipc.RunStatus
		err := ctx.withClient(func(client *ipc.Client) error {
			resp, err := client.Status()
			if err != nil {
				return err
			}
			run = resp.Run
			return nil
		})
		if err != nil {
			return err
		}
		if run == nil || run.ID != runID {
			return fmt.Errorf("run %s is no longer tracked by the daemon", runID)
		}
		if run.Active {
			continue
		}

		fmt.Fprintln(stdout, renderJobsTable(run.Jobs))
		if run.Error != "" {
			return fmt.Errorf("migration run failed: %s", run.Error)
		}
		failed := 0
		for _, job := range run.Jobs {
			if jobStateKind(job.State) == statusError {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("migration run finished with %d failed directories", failed)
		}
		fmt.Fprintln(stdout, "Migration run completed")
		return nil
	}
}
