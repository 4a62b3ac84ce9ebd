// Package main is the entry point for the fabric-mcp CLI.
//
// With no subcommand fabric-mcp serves MCP over stdio, which is how AI
// assistants launch it. The remaining subcommands call the Fabric API
// directly from a terminal and manage the adapter's own configuration.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fabricmcp/internal/config"
	"fabricmcp/internal/logging"

	"github.com/spf13/cobra"
)

var (
	cfg       *config.Config
	appLogger *logging.AppLogger

	flagBaseURL  string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "fabric-mcp",
	Short: "MCP server for the Fabric AI framework",
	Long: `fabric-mcp exposes a running Fabric REST API (fabric --serve) to
MCP-capable assistants. Run without arguments to serve MCP over stdio.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE:              runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "Fabric API base URL (overrides config and "+config.EnvBaseURL+")")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
}

// setup loads configuration and initializes logging before any command runs.
func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if flagBaseURL != "" {
		cfg.BaseURL = flagBaseURL
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}

	appLogger = logging.NewAppLogger(cfg.LogLevel)
	logging.SetDefault(appLogger)
	appLogger.Debug("Configuration loaded", "baseURL", cfg.BaseURL, "timeout", cfg.Timeout(), "command", cmd.Name())
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
