package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"fabricmcp/internal/fabric"
	"fabricmcp/internal/fabricenv"
	"fabricmcp/internal/logging"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var runFlags struct {
	model       string
	vendor      string
	strategy    string
	temperature float64
	topP        float64
	variables   map[string]string
	attachments []string
	raw         bool
}

var runCmd = &cobra.Command{
	Use:   "run <pattern> [input...]",
	Short: "Run a pattern and print its output",
	Long: `Run a Fabric pattern. Input is taken from the remaining arguments or,
when there are none, from stdin. Markdown output is rendered for the
terminal unless --raw is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPattern,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.model, "model", "m", "", "model name (defaults to DEFAULT_MODEL in Fabric's .env)")
	f.StringVarP(&runFlags.vendor, "vendor", "V", "", "vendor name (defaults to DEFAULT_VENDOR in Fabric's .env)")
	f.StringVar(&runFlags.strategy, "strategy", "", "prompt strategy")
	f.Float64VarP(&runFlags.temperature, "temperature", "t", fabric.DefaultTemperature, "sampling temperature (0-2)")
	f.Float64Var(&runFlags.topP, "top-p", fabric.DefaultTopP, "nucleus sampling (0-1)")
	f.StringToStringVar(&runFlags.variables, "var", nil, "template variable, key=value (repeatable)")
	f.StringSliceVar(&runFlags.attachments, "attachment", nil, "attachment path or URL (repeatable)")
	f.BoolVar(&runFlags.raw, "raw", false, "print output without markdown rendering")
	rootCmd.AddCommand(runCmd)
}

func runPattern(cmd *cobra.Command, args []string) error {
	input, err := readInput(cmd.InOrStdin(), args[1:])
	if err != nil {
		return err
	}

	pc := &fabric.PatternConfig{
		ModelName:    runFlags.model,
		VendorName:   runFlags.vendor,
		StrategyName: runFlags.strategy,
	}
	if cmd.Flags().Changed("temperature") {
		pc.Temperature = &runFlags.temperature
	}
	if cmd.Flags().Changed("top-p") {
		pc.TopP = &runFlags.topP
	}

	req, err := fabric.BuildChatRequest(args[0], input, pc,
		fabric.WithDefaults(fabricenv.NewLoader(cfg.FabricEnvPath, appLogger)),
		fabric.WithVariables(runFlags.variables),
		fabric.WithAttachments(runFlags.attachments),
	)
	if err != nil {
		return err
	}

	client := fabric.NewClient(cfg.ClientOptions(appLogger))
	defer client.Close()

	appLogger.Debug("Running pattern", "pattern", req.Prompt().PatternName, "baseURL", client.BaseURL())
	defer logging.LogPerformance("run "+req.Prompt().PatternName, time.Now())

	result, err := client.RunPattern(cmd.Context(), req)
	if err != nil {
		return err
	}

	out, err := renderOutput(result, runFlags.raw)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), out)
	return err
}

// readInput joins args, or reads r when args is empty and r is not a
// terminal.
func readInput(r io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if f, ok := r.(*os.File); ok {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			return "", nil
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(data), nil
}

func renderOutput(result *fabric.Result, raw bool) (string, error) {
	text := result.OutputText
	if raw || result.OutputFormat != "markdown" {
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		return text, nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return renderer.Render(text)
}
