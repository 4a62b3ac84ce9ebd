package mcp

import (
	"context"
	"fmt"

	"fabricmcp/internal/config"
	"fabricmcp/internal/fabric"
	"fabricmcp/internal/fabricenv"
	"fabricmcp/internal/logging"

	"github.com/mark3labs/mcp-go/server"
)

// ServerName is reported to MCP clients during initialization.
const ServerName = "fabric-mcp"

// Version is overridden at build time with -ldflags.
var Version = "dev"

const instructions = `Tools for the Fabric AI framework. Use fabric_list_patterns to discover
patterns, fabric_get_pattern_details to inspect one, and fabric_run_pattern
to execute a pattern on input text. Output is returned once the pattern has
finished running.`

// FabricClient is the subset of the Fabric API the tools call.
type FabricClient interface {
	RunPattern(ctx context.Context, req *fabric.ChatRequest) (*fabric.Result, error)
	ListPatterns(ctx context.Context) ([]string, error)
	GetPattern(ctx context.Context, name string) (*fabric.PatternDetails, error)
	ListModels(ctx context.Context) (*fabric.ModelCatalog, error)
	ListStrategies(ctx context.Context) ([]fabric.Strategy, error)
	GetConfiguration(ctx context.Context) (map[string]string, error)
	Close() error
}

var _ FabricClient = (*fabric.Client)(nil)

// ClientFactory creates a fresh client for a single tool call.
type ClientFactory func() FabricClient

// Server represents an MCP server instance using mcp-go
type Server struct {
	config    *config.Config
	logger    *logging.AppLogger
	defaults  fabric.DefaultsProvider
	newClient ClientFactory
	mcpServer *server.MCPServer
}

// Option customizes a Server.
type Option func(*Server)

// WithClientFactory replaces the factory used to build Fabric clients.
func WithClientFactory(f ClientFactory) Option {
	return func(s *Server) { s.newClient = f }
}

// WithDefaultsProvider replaces the source of the default model and vendor,
// which is Fabric's .env file otherwise.
func WithDefaultsProvider(p fabric.DefaultsProvider) Option {
	return func(s *Server) { s.defaults = p }
}

// NewServer creates a new MCP server instance with all tools registered.
func NewServer(cfg *config.Config, logger *logging.AppLogger, opts ...Option) *Server {
	if cfg == nil {
		def := config.DefaultConfig()
		cfg = &def
	}
	if logger == nil {
		logger = logging.GetDefault()
	}

	s := &Server{
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.defaults == nil {
		s.defaults = fabricenv.NewLoader(cfg.FabricEnvPath, logger)
	}
	if s.newClient == nil {
		s.newClient = func() FabricClient {
			return fabric.NewClient(s.config.ClientOptions(s.logger))
		}
	}

	s.mcpServer = server.NewMCPServer(
		ServerName,
		Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	s.registerTools()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Start serves MCP over stdin/stdout until EOF or termination.
func (s *Server) Start() error {
	s.logger.Info("Starting MCP server", "baseURL", s.config.BaseURL, "version", Version)

	if err := server.ServeStdio(s.mcpServer, server.WithErrorLogger(s.logger.StandardLog())); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the MCP server
func (s *Server) Stop() error {
	s.logger.Info("Stopping MCP server")
	// ServeStdio returns once its context is cancelled or stdin closes.
	return nil
}

// closeClient releases a per-call client, logging but not propagating
// failures.
func (s *Server) closeClient(c FabricClient) {
	if err := c.Close(); err != nil {
		s.logger.Warn("Failed to close Fabric client", "error", err)
	}
}
