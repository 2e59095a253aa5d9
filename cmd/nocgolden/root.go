package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nocgolden",
	Short: "Golden reference model for the on-chip routing fabric.",
	Long: `nocgolden executes fabric configurations against the golden ` +
		`reference model of the on-chip routing fabric. It seeds per-core ` +
		`memories, runs the round-based schedule, exports the resulting ` +
		`memory images, and inspects recorded traces.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
