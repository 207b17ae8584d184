package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"freight/internal/config"
)

func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "init [source-dir]",
		Short:       "Prepare a source tree for migration",
		Long:        "Create the .freight metadata directory, the root marker, and a project config file with a placeholder destination. Defaults to the current directory.",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			source := "."
			if len(args) == 1 {
				source = args[0]
			}
			cfgPath, err := config.InitProject(source)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Initialized freight project; config at %s\n", cfgPath)
			fmt.Fprintln(out, "Edit the file to set paths.dest_dir before running `freight migrate`.")
			return nil
		},
	}
}
