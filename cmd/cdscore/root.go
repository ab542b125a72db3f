package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cdscore",
		Short: "cdscore - scoring for cross-domain few-shot classification",
		Long: `cdscore scores few-shot classification submissions.

It reads the labels and predictions of every evaluation episode, computes
classification metrics, aggregates them with confidence intervals per dataset
and overall, and writes the leaderboard scores together with a detailed
HTML report.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	// Add subcommands
	cmd.AddCommand(newScoreCommand())
	cmd.AddCommand(newZipCommand())
	cmd.AddCommand(newMetricsCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
