package main

import (
	"fmt"

	"fabricmcp/internal/mcp"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	// Skip config loading.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mcp.ServerName, mcp.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
