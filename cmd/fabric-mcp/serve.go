package main

import (
	"fabricmcp/internal/logging"
	"fabricmcp/internal/mcp"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve MCP over stdin/stdout",
	Long: `Start an MCP server on stdin/stdout exposing the Fabric tools:
  - fabric_list_patterns
  - fabric_get_pattern_details
  - fabric_run_pattern
  - fabric_list_models
  - fabric_list_strategies
  - fabric_get_configuration`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	server := mcp.NewServer(cfg, appLogger)
	if err := server.Start(); err != nil {
		logging.Error("MCP server stopped", "error", err)
		return err
	}
	return nil
}
