package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"freight/internal/ipc"
)

func newWorkersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "workers",
		Short: "Show the worker registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Workers()
				if err != nil {
					return err
				}
				if len(resp.Workers) == 0 {
					fmt.Fprintln(stdout, "No workers have reported in")
					return nil
				}

				rows := make([][]string, 0, len(resp.Workers))
				for _, worker := range resp.Workers {
					rows = append(rows, []string{
						worker.Tool,
						worker.Dir,
						worker.Status,
						formatBytes(worker.Bytes),
						worker.LastMessage,
						yesNo(worker.Connected),
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"Tool", "Directory", "Status", "Bytes", "Last Message", "Connected"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "Show per-directory jobs of the active or most recent run",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Jobs()
				if err != nil {
					return err
				}
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(stdout, "No migration run has been started")
					return nil
				}
				fmt.Fprintln(stdout, renderJobsTable(resp.Jobs))
				return nil
			})
		},
	}
}
