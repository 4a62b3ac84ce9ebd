package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fabricmcp/internal/config"
	"fabricmcp/internal/fabric"
	"fabricmcp/internal/logging"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient records how it was used; every factory call returns the same
// instance so close counts can be compared with creations.
type fakeClient struct {
	result     *fabric.Result
	err        error
	patterns   []string
	details    *fabric.PatternDetails
	catalog    *fabric.ModelCatalog
	strategies []fabric.Strategy
	config     map[string]string

	created int
	closed  int
	gotReq  *fabric.ChatRequest
	gotName string
}

func (c *fakeClient) RunPattern(_ context.Context, req *fabric.ChatRequest) (*fabric.Result, error) {
	c.gotReq = req
	return c.result, c.err
}

func (c *fakeClient) ListPatterns(context.Context) ([]string, error) { return c.patterns, c.err }

func (c *fakeClient) GetPattern(_ context.Context, name string) (*fabric.PatternDetails, error) {
	c.gotName = name
	return c.details, c.err
}

func (c *fakeClient) ListModels(context.Context) (*fabric.ModelCatalog, error) {
	return c.catalog, c.err
}

func (c *fakeClient) ListStrategies(context.Context) ([]fabric.Strategy, error) {
	return c.strategies, c.err
}

func (c *fakeClient) GetConfiguration(context.Context) (map[string]string, error) {
	return c.config, c.err
}

func (c *fakeClient) Close() error {
	c.closed++
	return nil
}

func newTestServer(t *testing.T, client *fakeClient, defaults fabric.DefaultsProvider) *Server {
	t.Helper()
	logger, _ := logging.NewTestLogger()
	cfg := config.DefaultConfig()
	if defaults == nil {
		defaults = fabric.DefaultsFunc(func() (string, string) { return "", "" })
	}
	return NewServer(&cfg, logger,
		WithClientFactory(func() FabricClient {
			client.created++
			return client
		}),
		WithDefaultsProvider(defaults),
	)
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestNewServer(t *testing.T) {
	server := newTestServer(t, &fakeClient{}, nil)

	assert.NotNil(t, server.MCPServer())
	assert.NoError(t, server.Stop())
}

func TestNewServer_NilArguments(t *testing.T) {
	server := NewServer(nil, nil)

	require.NotNil(t, server.MCPServer())
	assert.Equal(t, fabric.DefaultBaseURL, server.config.BaseURL)
	assert.NotNil(t, server.defaults)
}

func TestToolsList(t *testing.T) {
	server := newTestServer(t, &fakeClient{}, nil)

	resp := server.MCPServer().HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	for _, name := range []string{
		ToolListPatterns, ToolGetPatternDetails, ToolRunPattern,
		ToolListModels, ToolListStrategies, ToolGetConfiguration,
	} {
		assert.Contains(t, string(data), `"`+name+`"`)
	}
}

func TestRunPattern_Success(t *testing.T) {
	client := &fakeClient{result: &fabric.Result{OutputText: "Hello World", OutputFormat: "markdown"}}
	server := newTestServer(t, client, nil)

	res, err := server.handleRunPattern(context.Background(), callRequest(ToolRunPattern, map[string]any{
		"pattern_name": "summarize",
		"input_text":   "some text",
		"stream":       true,
		"variables":    map[string]any{"lang": "fr"},
		"attachments":  []any{"https://example.com/a.png"},
	}))

	require.NoError(t, err)
	assert.JSONEq(t, `{"output_text":"Hello World","output_format":"markdown"}`, resultText(t, res))
	require.NotNil(t, client.gotReq)
	p := client.gotReq.Prompt()
	assert.Equal(t, "summarize", p.PatternName)
	assert.Equal(t, "some text", p.UserInput)
	assert.Equal(t, map[string]string{"lang": "fr"}, p.Variables)
	assert.Equal(t, []string{"https://example.com/a.png"}, p.Attachments)
	assert.Equal(t, 1, client.created)
	assert.Equal(t, 1, client.closed)
}

func TestRunPattern_ModelPrecedence(t *testing.T) {
	env := fabric.DefaultsFunc(func() (string, string) { return "env-model", "env-vendor" })

	tests := []struct {
		name       string
		config     map[string]any
		wantModel  string
		wantVendor string
	}{
		{"environment defaults", nil, "env-model", "env-vendor"},
		{"explicit model only", map[string]any{"model_name": "gpt-4o-mini"}, "gpt-4o-mini", "env-vendor"},
		{"explicit both", map[string]any{"model_name": "m", "vendor_name": "v"}, "m", "v"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{result: &fabric.Result{OutputText: "x", OutputFormat: "text"}}
			server := newTestServer(t, client, env)
			args := map[string]any{"pattern_name": "summarize"}
			if tt.config != nil {
				args["config"] = tt.config
			}

			_, err := server.handleRunPattern(context.Background(), callRequest(ToolRunPattern, args))

			require.NoError(t, err)
			assert.Equal(t, tt.wantModel, client.gotReq.Prompt().Model)
			assert.Equal(t, tt.wantVendor, client.gotReq.Prompt().Vendor)
		})
	}
}

func TestRunPattern_FailuresCloseClient(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]any
		clientEr error
		wantCode int
		wantMsg  string
		wantKind any
	}{
		{
			name:     "empty pattern name",
			args:     map[string]any{"pattern_name": "  "},
			wantCode: mcp.INVALID_PARAMS,
			wantMsg:  "validation error",
			wantKind: new(*fabric.ValidationError),
		},
		{
			name:     "temperature out of range",
			args:     map[string]any{"pattern_name": "p", "config": map[string]any{"temperature": 3.0}},
			wantCode: mcp.INVALID_PARAMS,
			wantMsg:  "temperature",
			wantKind: new(*fabric.ValidationError),
		},
		{
			name:     "wrong argument type",
			args:     map[string]any{"pattern_name": "p", "config": "not an object"},
			wantCode: mcp.INVALID_PARAMS,
			wantMsg:  "arguments",
			wantKind: new(*fabric.ValidationError),
		},
		{
			name:     "connection refused",
			args:     map[string]any{"pattern_name": "p"},
			clientEr: &fabric.ConnectionError{URL: "http://127.0.0.1:1/chat", Err: errors.New("connection refused")},
			wantCode: mcp.INTERNAL_ERROR,
			wantMsg:  "connection error",
			wantKind: new(*fabric.ConnectionError),
		},
		{
			name:     "http status",
			args:     map[string]any{"pattern_name": "p"},
			clientEr: &fabric.APIStatusError{StatusCode: 500, Status: "500 Internal Server Error", Body: "boom"},
			wantCode: mcp.INTERNAL_ERROR,
			wantMsg:  "Fabric API HTTP error 500",
			wantKind: new(*fabric.APIStatusError),
		},
		{
			name:     "stream error event",
			args:     map[string]any{"pattern_name": "p"},
			clientEr: &fabric.APIError{Message: "Pattern not found"},
			wantCode: mcp.INTERNAL_ERROR,
			wantMsg:  "Fabric API error: Pattern not found",
			wantKind: new(*fabric.APIError),
		},
		{
			name:     "empty stream",
			args:     map[string]any{"pattern_name": "p"},
			clientEr: &fabric.EmptyStreamError{},
			wantCode: mcp.INTERNAL_ERROR,
			wantMsg:  "empty stream error",
			wantKind: new(*fabric.EmptyStreamError),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{err: tt.clientEr}
			server := newTestServer(t, client, nil)

			res, err := server.handleRunPattern(context.Background(), callRequest(ToolRunPattern, tt.args))

			assert.Nil(t, res)
			var toolErr *ToolError
			require.ErrorAs(t, err, &toolErr)
			assert.Equal(t, tt.wantCode, toolErr.Code)
			assert.Contains(t, toolErr.Error(), tt.wantMsg)
			assert.True(t, strings.HasPrefix(toolErr.Error(), "Error executing pattern"))
			assert.ErrorAs(t, err, tt.wantKind)
			assert.Equal(t, 1, client.created)
			assert.Equal(t, 1, client.closed)
		})
	}
}

func TestRunPattern_ValidationSkipsIO(t *testing.T) {
	client := &fakeClient{}
	server := newTestServer(t, client, nil)

	_, err := server.handleRunPattern(context.Background(), callRequest(ToolRunPattern, map[string]any{
		"pattern_name": "p",
		"config":       map[string]any{"top_p": 1.5},
	}))

	require.Error(t, err)
	assert.Nil(t, client.gotReq)
}

func TestGetPatternDetails(t *testing.T) {
	client := &fakeClient{details: &fabric.PatternDetails{Name: "summarize", Description: "Summarize text", Pattern: "# IDENTITY"}}
	server := newTestServer(t, client, nil)

	res, err := server.handleGetPatternDetails(context.Background(),
		callRequest(ToolGetPatternDetails, map[string]any{"pattern_name": " summarize "}))

	require.NoError(t, err)
	assert.Equal(t, "summarize", client.gotName)
	assert.JSONEq(t, `{"name":"summarize","description":"Summarize text","pattern":"# IDENTITY"}`, resultText(t, res))
	assert.Equal(t, 1, client.closed)
}

func TestGetPatternDetails_InvalidName(t *testing.T) {
	client := &fakeClient{}
	server := newTestServer(t, client, nil)

	_, err := server.handleGetPatternDetails(context.Background(),
		callRequest(ToolGetPatternDetails, map[string]any{"pattern_name": "../etc"}))

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, mcp.INVALID_PARAMS, toolErr.Code)
	assert.Empty(t, client.gotName)
	assert.Equal(t, 1, client.closed)
}

func TestListingTools(t *testing.T) {
	client := &fakeClient{
		patterns:   []string{"summarize", "extract_wisdom"},
		catalog:    &fabric.ModelCatalog{Models: []string{"gpt-4o"}, Vendors: map[string][]string{"openai": {"gpt-4o"}}},
		strategies: []fabric.Strategy{{Name: "cot", Description: "Chain of thought", Prompt: "Think step by step"}},
		config:     map[string]string{"OPENAI_API_KEY": "[REDACTED_BY_MCP_SERVER]", "DEFAULT_MODEL": "gpt-4o"},
	}
	server := newTestServer(t, client, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		want    string
	}{
		{ToolListPatterns, server.handleListPatterns, `["summarize","extract_wisdom"]`},
		{ToolListModels, server.handleListModels, `{"models":["gpt-4o"],"vendors":{"openai":["gpt-4o"]}}`},
		{ToolListStrategies, server.handleListStrategies, `[{"name":"cot","description":"Chain of thought","prompt":"Think step by step"}]`},
		{ToolGetConfiguration, server.handleGetConfiguration, `{"OPENAI_API_KEY":"[REDACTED_BY_MCP_SERVER]","DEFAULT_MODEL":"gpt-4o"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.handler(ctx, callRequest(tt.name, nil))

			require.NoError(t, err)
			assert.JSONEq(t, tt.want, resultText(t, res))
		})
	}
	assert.Equal(t, len(tests), client.created)
	assert.Equal(t, len(tests), client.closed)
}

func TestListingTools_Errors(t *testing.T) {
	client := &fakeClient{err: &fabric.TimeoutError{URL: "http://x/patterns/names", Err: context.DeadlineExceeded}}
	server := newTestServer(t, client, nil)

	_, err := server.handleListPatterns(context.Background(), callRequest(ToolListPatterns, nil))

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, mcp.INTERNAL_ERROR, toolErr.Code)
	assert.Contains(t, toolErr.Error(), "Error listing patterns: timeout error")
	assert.Equal(t, 1, client.closed)
}

func TestToolCall_ErrorEnvelope(t *testing.T) {
	client := &fakeClient{err: &fabric.APIError{Message: "Pattern not found"}}
	server := newTestServer(t, client, nil)

	resp := server.MCPServer().HandleMessage(context.Background(), json.RawMessage(
		`{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"fabric_run_pattern","arguments":{"pattern_name":"nope"}}}`))
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	assert.Contains(t, string(data), fmt.Sprintf(`"code":%d`, mcp.INTERNAL_ERROR))
	assert.Contains(t, string(data), "Fabric API error: Pattern not found")
	assert.Equal(t, 1, client.closed)
}

// TestRunPattern_AgainstHTTP drives the real client against an httptest
// Fabric API.
func TestRunPattern_AgainstHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"content\",\"content\":\"Hello \",\"format\":\"markdown\"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"content\",\"content\":\"World\",\"format\":\"markdown\"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"complete\"}\n\n")
	}))
	t.Cleanup(srv.Close)

	logger, buf := logging.NewTestLogger()
	cfg := config.DefaultConfig()
	cfg.BaseURL = srv.URL
	server := NewServer(&cfg, logger,
		WithDefaultsProvider(fabric.DefaultsFunc(func() (string, string) { return "", "" })))

	res, err := server.handleRunPattern(context.Background(),
		callRequest(ToolRunPattern, map[string]any{"pattern_name": "summarize", "input_text": "hi"}))

	require.NoError(t, err)
	assert.JSONEq(t, `{"output_text":"Hello World","output_format":"markdown"}`, resultText(t, res))
	assert.Equal(t, 1, strings.Count(buf.String(), "Performance"), "run duration is logged once")
	assert.Contains(t, buf.String(), "tool="+ToolRunPattern)
}

func TestToolError_Unwrap(t *testing.T) {
	cause := &fabric.MalformedDataError{Data: "{bad", Err: errors.New("unexpected EOF")}
	err := newToolError("Error executing pattern 'p'", cause)

	assert.Equal(t, mcp.INTERNAL_ERROR, err.Code)
	assert.ErrorIs(t, err, cause)
	assert.True(t, fabric.IsClassified(errors.Unwrap(err)))
}

func TestToolError_UnclassifiedCause(t *testing.T) {
	err := newToolError("Error executing pattern 'p'", errors.New("failed to encode chat request"))

	assert.Equal(t, mcp.INTERNAL_ERROR, err.Code)
	assert.Equal(t, "Error executing pattern 'p': unexpected error: failed to encode chat request", err.Error())
}

func TestToolCall_LogsWithToolName(t *testing.T) {
	logger, buf := logging.NewTestLogger()
	cfg := config.DefaultConfig()
	client := &fakeClient{err: &fabric.ConnectionError{URL: "http://127.0.0.1:1/patterns/names", Err: errors.New("refused")}}
	server := NewServer(&cfg, logger,
		WithClientFactory(func() FabricClient { return client }),
		WithDefaultsProvider(fabric.DefaultsFunc(func() (string, string) { return "", "" })))

	_, err := server.handleListPatterns(context.Background(), callRequest(ToolListPatterns, nil))

	require.Error(t, err)
	assert.Contains(t, buf.String(), "Tool call failed")
	assert.Contains(t, buf.String(), "tool="+ToolListPatterns)
}
