package mcp

import (
	"errors"
	"fmt"

	"fabricmcp/internal/fabric"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolError is the protocol-level error returned from a tool handler.
type ToolError struct {
	Code    int
	Message string
	Err     error
}

func (e *ToolError) Error() string { return e.Message }

func (e *ToolError) Unwrap() error { return e.Err }

// newToolError wraps err, prefixing its message with action, e.g.
// "Error executing pattern 'summarize'". Errors outside the fabric taxonomy
// are reported as unexpected.
func newToolError(action string, err error) *ToolError {
	var vErr *fabric.ValidationError
	switch {
	case errors.As(err, &vErr):
		return &ToolError{Code: mcp.INVALID_PARAMS, Message: fmt.Sprintf("%s: %v", action, err), Err: err}
	case fabric.IsClassified(err):
		return &ToolError{Code: mcp.INTERNAL_ERROR, Message: fmt.Sprintf("%s: %v", action, err), Err: err}
	default:
		return &ToolError{Code: mcp.INTERNAL_ERROR, Message: fmt.Sprintf("%s: unexpected error: %v", action, err), Err: err}
	}
}
