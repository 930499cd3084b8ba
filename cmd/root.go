// Package cmd implements the labelforge CLI.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "labelforge",
	Short: "labelforge - AI-assisted wine label generation",
	Long: `labelforge turns a wine submission into a schema-valid label layout
through a sequence of model-driven pipeline steps, with bounded
self-repair, classified retry and iterative refinement.

Run 'labelforge generate' with a submission file to start a run.`,
	SilenceUsage: true,
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
