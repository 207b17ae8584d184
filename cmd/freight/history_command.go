package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"freight/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded migration runs, or one run's event trail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			if len(args) == 1 {
				return ctx.withClient(func(client *ipc.Client) error {
					resp, err := client.RunEvents(args[0], limit)
					if err != nil {
						return err
					}
					if len(resp.Events) == 0 {
						fmt.Fprintln(stdout, "No events recorded for this run")
						return nil
					}
					rows := make([][]string, 0, len(resp.Events))
					for _, ev := range resp.Events {
						rows = append(rows, []string{
							ev.At.Local().Format(time.TimeOnly),
							ev.Kind,
							ev.Tool,
							ev.Dir,
							ev.Status,
							formatBytes(ev.Bytes),
							ev.Detail,
						})
					}
					fmt.Fprintln(stdout, renderTable(
						[]string{"Time", "Kind", "Tool", "Directory", "Status", "Bytes", "Detail"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
					))
					return nil
				})
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(limit)
				if err != nil {
					return err
				}
				if len(resp.Runs) == 0 {
					fmt.Fprintln(stdout, "No migration runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(resp.Runs))
				for _, run := range resp.Runs {
					finished := "-"
					if run.FinishedAt != nil {
						finished = formatAge(*run.FinishedAt)
					}
					outcome := run.Outcome
					if outcome == "" {
						outcome = "in progress"
					}
					rows = append(rows, []string{
						run.ID,
						run.SourceDir,
						run.DestDir,
						formatAge(run.StartedAt),
						finished,
						outcome,
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"Run", "Source", "Destination", "Started", "Finished", "Outcome"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show")
	return cmd
}
