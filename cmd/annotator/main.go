// Command annotator is the single-reviewer dialogue annotation tool: a local
// HTTP API for the reviewer UI, offline scoring and export commands, and a
// Temporal worker for batch exports.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "annotator",
		Short: "Dialogue annotation scoring tool",
		Long: `annotator records rubric scores for multi-turn image dialogues and
exports the results with aggregate statistics.

Run 'annotator serve' to start the local API.
Run 'annotator --help' for available commands.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")

	rootCmd.AddCommand(
		serveCmd(),
		loadCmd(),
		scoreCmd(),
		resetCmd(),
		statsCmd(),
		reportCmd(),
		exportCmd(),
		importCmd(),
		workerCmd(),
		versionCmd(),
	)
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "annotator %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}
