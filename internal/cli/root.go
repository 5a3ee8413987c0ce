// Package cli implements the jobengine command-line interface using Cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/SentientJobs/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "jobengine",
	Short: "Task-graph job engine",
	Long: `jobengine runs task-graph jobs on simulated entities. Jobs are loaded
from JSON, YAML or TOML documents, started by triggers or operators, and
stepped once per tick.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute() {
	rootCmd.Version = version.String()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
