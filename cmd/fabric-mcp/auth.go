package main

import (
	"bufio"
	"fmt"

	"fabricmcp/internal/config"
	"fabricmcp/internal/credentials"

	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Fabric API key stored in the OS keyring",
}

var authSetKeyCmd = &cobra.Command{
	Use:   "set-key [key]",
	Short: "Store the Fabric API key",
	Long: `Store the key sent as X-API-Key to the Fabric API. When no key is given
as an argument it is read from the first line of stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var key string
		if len(args) == 1 {
			key = args[0]
		} else {
			fmt.Fprint(cmd.ErrOrStderr(), "API key: ")
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read API key: %w", err)
			}
			key = line
		}

		if err := credentials.NewCredentialManager().StoreAPIKey(key); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "API key stored")
		return nil
	},
}

var authClearKeyCmd = &cobra.Command{
	Use:   "clear-key",
	Short: "Remove the stored Fabric API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := credentials.NewCredentialManager().DeleteAPIKey(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "API key removed")
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where the API key comes from",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), keySource(cfg))
		return nil
	},
}

// keySource describes the configuration layer that supplied the key sent
// to the Fabric API.
func keySource(c *config.Config) string {
	if c == nil || c.APIKey == "" {
		return "no API key configured"
	}
	switch c.APIKeySource {
	case config.APIKeyFromEnv:
		return "API key set by " + config.EnvAPIKey
	case config.APIKeyFromFile:
		return "API key set in " + config.ConfigPath()
	case config.APIKeyFromKeyring:
		return "API key stored in keyring"
	default:
		return "API key configured"
	}
}

func init() {
	authCmd.AddCommand(authSetKeyCmd, authClearKeyCmd, authStatusCmd)
	rootCmd.AddCommand(authCmd)
}
