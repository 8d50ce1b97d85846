package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diffstream",
		Short: "Stress-test a solution against a reference implementation",
		Long: `diffstream drives continuous diff testing: the server generates random
test inputs, runs your solution and the reference solution on each one, and
streams every comparison back as it happens.

A session holds the three programs involved (your solution, the reference
solution, and the input generator) plus the test cases from the latest run.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().String("server", "", "API root URL (overrides config)")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			logLevel.Set(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newLoginCommand())
	cmd.AddCommand(newSessionCommand())
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newRerunCommand())
	cmd.AddCommand(newAICommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
