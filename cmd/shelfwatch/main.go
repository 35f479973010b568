// Package main provides the shelfwatch CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var g globalOpts

	rootCmd := &cobra.Command{
		Use:   "shelfwatch",
		Short: "Daily inventory snapshots, diffs and trends",
		Long: `shelfwatch ingests the daily inventory export, keeps one immutable
snapshot per SKU and day, and answers diff and range queries over them.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Path to config file (default: search for .shelfwatch/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (overrides config)")

	rootCmd.AddCommand(
		newMigrateCmd(&g),
		newFetchCmd(&g),
		newIngestCmd(&g),
		newBackfillCmd(&g),
		newDownloadCmd(&g),
		newValidateCmd(&g),
		newDiffCmd(&g),
		newRangeCmd(&g),
		newRunsCmd(&g),
		newSKUsCmd(&g),
	)
	return rootCmd
}
