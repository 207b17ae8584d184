// Package main is the freight daemon entrypoint. It loads configuration,
// then hands control to daemonrun for the foreground runtime loop.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"freight/internal/config"
	"freight/internal/daemonrun"
)

func main() {
	if err := newDaemonCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newDaemonCommand() *cobra.Command {
	var configFlag string
	var logLevel string

	cmd := &cobra.Command{
		Use:           "freightd",
		Short:         "Freight migration daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(configFlag)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: logLevel})
		},
	}

	cmd.Flags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override configured log level")
	return cmd
}
