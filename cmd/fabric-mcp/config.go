package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"fabricmcp/internal/config"
	"fabricmcp/internal/fabricenv"
	"fabricmcp/internal/logging"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the fabric-mcp config file",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), config.ConfigPath())
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := config.ConfigPath()
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		def := config.DefaultConfig()
		if err := def.Save(); err != nil {
			return err
		}
		logging.Info("Wrote default config", "path", path)
		fmt.Fprintln(cmd.OutOrStdout(), "Wrote", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		shown := *cfg
		if shown.APIKey != "" {
			shown.APIKey = "********"
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# config file: %s\n", config.ConfigPath())
		fmt.Fprintf(out, "# fabric env file: %s\n", fabricenv.NewLoader(cfg.FabricEnvPath, appLogger).Path())
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(shown)
	},
}

func init() {
	configCmd.AddCommand(configPathCmd, configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
