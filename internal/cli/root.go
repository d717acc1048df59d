// Package cli wires the retain commands.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "retain",
	Short: "Tiered memory lifecycle engine for conversational agents",
	Long: "Retain stores conversational memories and moves them through " +
		"WORKING, SHORT_TERM, LONG_TERM, and CORE tiers based on how they " +
		"are accessed, reinforced, and contradicted. Single Go binary, " +
		"local SQLite storage.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(maintainCmd)
	rootCmd.AddCommand(statsCmd)
}
