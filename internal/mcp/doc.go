// Package mcp exposes the Fabric REST API as a Model Context Protocol (MCP)
// server built on mcp-go.
//
// The server speaks JSON-RPC 2.0 over stdin/stdout and registers one tool per
// Fabric operation:
//
//	fabric_list_patterns        GET  /patterns/names
//	fabric_get_pattern_details  GET  /patterns/{name}
//	fabric_run_pattern          POST /chat (SSE, aggregated)
//	fabric_list_models          GET  /models/names
//	fabric_list_strategies      GET  /strategies
//	fabric_get_configuration    GET  /config (secrets redacted)
//
// # Clients
//
// Every tool call builds its own Fabric client through the server's client
// factory and closes it before returning, whatever the outcome. No HTTP
// connection state is shared between calls.
//
// # Errors
//
// Failures from the fabric package are wrapped in a *ToolError carrying a
// JSON-RPC code: INVALID_PARAMS for validation failures and INTERNAL_ERROR
// for everything else. mcp-go turns a handler error into a JSON-RPC error
// response, so callers never see a partial result.
//
// # Usage
//
// The server is normally launched as a subprocess by an MCP-capable
// assistant:
//
//	fabric-mcp serve
package mcp
