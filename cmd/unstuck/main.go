package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "unstuck",
	Short:         "Socratic math tutor backed by an LLM",
	Long:          "unstuck helps students work through math problems without giving the answer away: it solves each problem privately, then guides with subproblems when the student is stuck.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(stuckCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(revealCmd)
	rootCmd.AddCommand(recentCmd)
	rootCmd.AddCommand(workCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
