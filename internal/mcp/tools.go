package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fabricmcp/internal/fabric"
	"fabricmcp/internal/logging"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	ToolListPatterns      = "fabric_list_patterns"
	ToolGetPatternDetails = "fabric_get_pattern_details"
	ToolRunPattern        = "fabric_run_pattern"
	ToolListModels        = "fabric_list_models"
	ToolListStrategies    = "fabric_list_strategies"
	ToolGetConfiguration  = "fabric_get_configuration"
)

// runPatternArgs mirrors the fabric_run_pattern input schema.
type runPatternArgs struct {
	PatternName string                `json:"pattern_name"`
	InputText   string                `json:"input_text"`
	Stream      bool                  `json:"stream"`
	Config      *fabric.PatternConfig `json:"config"`
	Variables   map[string]string     `json:"variables"`
	Attachments []string              `json:"attachments"`
}

func (s *Server) registerTools() {
	tools := []struct {
		tool    mcp.Tool
		handler server.ToolHandlerFunc
	}{
		{
			mcp.NewTool(ToolListPatterns,
				mcp.WithDescription("List the names of all patterns available in Fabric."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			s.handleListPatterns,
		},
		{
			mcp.NewTool(ToolGetPatternDetails,
				mcp.WithDescription("Get the description and system prompt of a Fabric pattern."),
				mcp.WithString("pattern_name",
					mcp.Required(),
					mcp.Description("Name of the pattern, as returned by fabric_list_patterns"),
				),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			s.handleGetPatternDetails,
		},
		{
			mcp.NewTool(ToolRunPattern,
				mcp.WithDescription("Run a Fabric pattern on the given input and return its complete output."),
				mcp.WithString("pattern_name",
					mcp.Required(),
					mcp.Description("Name of the pattern to run"),
				),
				mcp.WithString("input_text",
					mcp.Description("Text the pattern is applied to"),
				),
				mcp.WithBoolean("stream",
					mcp.Description("Accepted for compatibility; output is always returned in one piece"),
				),
				mcp.WithObject("config",
					mcp.Description("Optional model settings"),
					mcp.Properties(map[string]any{
						"model_name":        map[string]any{"type": "string"},
						"vendor_name":       map[string]any{"type": "string"},
						"strategy_name":     map[string]any{"type": "string"},
						"temperature":       map[string]any{"type": "number", "minimum": 0, "maximum": 2},
						"top_p":             map[string]any{"type": "number", "minimum": 0, "maximum": 1},
						"presence_penalty":  map[string]any{"type": "number", "minimum": -2, "maximum": 2},
						"frequency_penalty": map[string]any{"type": "number", "minimum": -2, "maximum": 2},
					}),
				),
				mcp.WithObject("variables",
					mcp.Description("Template variables substituted into the pattern"),
					mcp.AdditionalProperties(map[string]any{"type": "string"}),
				),
				mcp.WithArray("attachments",
					mcp.Description("File paths or URLs attached to the prompt"),
					mcp.Items(map[string]any{"type": "string"}),
				),
			),
			s.handleRunPattern,
		},
		{
			mcp.NewTool(ToolListModels,
				mcp.WithDescription("List the models Fabric can use, grouped by vendor."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			s.handleListModels,
		},
		{
			mcp.NewTool(ToolListStrategies,
				mcp.WithDescription("List the prompt strategies Fabric supports."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			s.handleListStrategies,
		},
		{
			mcp.NewTool(ToolGetConfiguration,
				mcp.WithDescription("Show Fabric's configuration. Secret values are redacted."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			s.handleGetConfiguration,
		},
	}

	for _, t := range tools {
		s.mcpServer.AddTool(t.tool, t.handler)
	}
	s.logger.Debug("Registered MCP tools", "count", len(tools))
}

func (s *Server) handleListPatterns(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := s.logger.With("tool", ToolListPatterns)
	client := s.newClient()
	defer s.closeClient(client)

	names, err := client.ListPatterns(ctx)
	if err != nil {
		return nil, fail(logger, newToolError("Error listing patterns", err))
	}
	return jsonResult(names)
}

func (s *Server) handleGetPatternDetails(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := s.logger.With("tool", ToolGetPatternDetails)
	client := s.newClient()
	defer s.closeClient(client)

	raw := req.GetString("pattern_name", "")
	name, err := fabric.CheckPatternName(raw)
	if err != nil {
		return nil, fail(logger, newToolError(fmt.Sprintf("Error retrieving pattern '%s'", raw), err))
	}
	details, err := client.GetPattern(ctx, name)
	if err != nil {
		return nil, fail(logger, newToolError(fmt.Sprintf("Error retrieving pattern '%s'", name), err))
	}
	return jsonResult(details)
}

func (s *Server) handleRunPattern(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := s.logger.With("tool", ToolRunPattern)
	client := s.newClient()
	defer s.closeClient(client)

	var args runPatternArgs
	if err := bindArguments(req, &args); err != nil {
		return nil, fail(logger, newToolError("Error executing pattern", err))
	}
	action := fmt.Sprintf("Error executing pattern '%s'", args.PatternName)

	chatReq, err := fabric.BuildChatRequest(args.PatternName, args.InputText, args.Config,
		fabric.WithDefaults(s.defaults),
		fabric.WithVariables(args.Variables),
		fabric.WithAttachments(args.Attachments),
	)
	if err != nil {
		return nil, fail(logger, newToolError(action, err))
	}
	if args.Stream {
		logger.Debug("Streaming requested, returning aggregated output", "pattern", args.PatternName)
	}

	logger.DebugObject("chat request", chatReq)

	start := time.Now()
	result, err := client.RunPattern(ctx, chatReq)
	if err != nil {
		return nil, fail(logger, newToolError(action, err))
	}
	logger.LogPerformance("run pattern "+chatReq.Prompt().PatternName, start)
	return jsonResult(result)
}

func (s *Server) handleListModels(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := s.logger.With("tool", ToolListModels)
	client := s.newClient()
	defer s.closeClient(client)

	catalog, err := client.ListModels(ctx)
	if err != nil {
		return nil, fail(logger, newToolError("Error listing models", err))
	}
	return jsonResult(catalog)
}

func (s *Server) handleListStrategies(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := s.logger.With("tool", ToolListStrategies)
	client := s.newClient()
	defer s.closeClient(client)

	strategies, err := client.ListStrategies(ctx)
	if err != nil {
		return nil, fail(logger, newToolError("Error listing strategies", err))
	}
	return jsonResult(strategies)
}

func (s *Server) handleGetConfiguration(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := s.logger.With("tool", ToolGetConfiguration)
	client := s.newClient()
	defer s.closeClient(client)

	cfg, err := client.GetConfiguration(ctx)
	if err != nil {
		return nil, fail(logger, newToolError("Error retrieving configuration", err))
	}
	return jsonResult(cfg)
}

func fail(logger *logging.AppLogger, err *ToolError) error {
	logger.Error("Tool call failed", "code", err.Code, "error", err.Message)
	return err
}

// bindArguments decodes the raw tool arguments into out.
func bindArguments(req mcp.CallToolRequest, out any) error {
	data, err := json.Marshal(req.GetArguments())
	if err != nil {
		return &fabric.ValidationError{Field: "arguments", Message: err.Error()}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &fabric.ValidationError{Field: "arguments", Message: err.Error()}
	}
	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
