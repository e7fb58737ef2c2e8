package main

import (
	"os"

	"github.com/relictools/relic/cli"
	"github.com/relictools/relic/cmd"
)

func main() {
	rootCmd := cli.NewStandardCommand(
		"relic",
		"Incremental build cache tooling with filesystem-backed invalidation",
	)

	// Add subcommands
	rootCmd.AddCommand(cmd.NewDaemonCmd())
	rootCmd.AddCommand(cmd.NewTrackCmd())
	rootCmd.AddCommand(cmd.NewChangedCmd())
	rootCmd.AddCommand(cmd.NewStatusCmd())
	rootCmd.AddCommand(cmd.NewFingerprintCmd())
	rootCmd.AddCommand(cmd.NewConfigCmd())
	rootCmd.AddCommand(cmd.NewLogsCmd())
	rootCmd.AddCommand(cmd.NewPathsCmd())
	rootCmd.AddCommand(cmd.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
