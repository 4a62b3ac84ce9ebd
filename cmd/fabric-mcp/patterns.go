package main

import (
	"fmt"
	"sort"
	"strings"

	"fabricmcp/internal/fabric"

	"github.com/spf13/cobra"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List available patterns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client := fabric.NewClient(cfg.ClientOptions(appLogger))
		defer client.Close()

		names, err := client.ListPatterns(cmd.Context())
		if err != nil {
			return err
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var patternShowCmd = &cobra.Command{
	Use:   "show <pattern>",
	Short: "Show a pattern's description and system prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := fabric.CheckPatternName(args[0])
		if err != nil {
			return err
		}
		client := fabric.NewClient(cfg.ClientOptions(appLogger))
		defer client.Close()

		details, err := client.GetPattern(cmd.Context(), name)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s\n\n", details.Name)
		if details.Description != "" {
			fmt.Fprintf(out, "%s\n\n", details.Description)
		}
		fmt.Fprintln(out, details.Pattern)
		return nil
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models grouped by vendor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client := fabric.NewClient(cfg.ClientOptions(appLogger))
		defer client.Close()

		catalog, err := client.ListModels(cmd.Context())
		if err != nil {
			return err
		}
		vendors := make([]string, 0, len(catalog.Vendors))
		for v := range catalog.Vendors {
			vendors = append(vendors, v)
		}
		sort.Strings(vendors)
		for _, v := range vendors {
			fmt.Fprintf(cmd.OutOrStdout(), "%s:\n  %s\n", v, strings.Join(catalog.Vendors[v], "\n  "))
		}
		return nil
	},
}

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List prompt strategies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client := fabric.NewClient(cfg.ClientOptions(appLogger))
		defer client.Close()

		strategies, err := client.ListStrategies(cmd.Context())
		if err != nil {
			return err
		}
		for _, s := range strategies {
			fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", s.Name, s.Description)
		}
		return nil
	},
}

func init() {
	patternsCmd.AddCommand(patternShowCmd)
	rootCmd.AddCommand(patternsCmd, modelsCmd, strategiesCmd)
}
