// Package mcp implements the Model Context Protocol server for CodeScope.
// It exposes the index to AI clients (Claude Code, Cursor) as tools over
// stdio.
package mcp

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/codescope/codescope/internal/errors"
)

// Custom MCP error codes for CodeScope.
const (
	// ErrCodeGenerationUnavailable indicates the answer backend is down.
	ErrCodeGenerationUnavailable = -32001

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32002

	// Standard JSON-RPC error codes.
	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var se *errors.ScopeError
	if stderrors.As(err, &se) {
		return mapScopeError(se)
	}

	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case stderrors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a
// custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// mapScopeError converts a ScopeError, carrying its suggestion into the
// message so clients can surface the fix.
func mapScopeError(se *errors.ScopeError) *MCPError {
	message := se.Message
	if se.Suggestion != "" {
		message = fmt.Sprintf("%s. %s", se.Message, se.Suggestion)
	}

	if se.Code == errors.ErrCodeGenerationUnavailable {
		return &MCPError{Code: ErrCodeGenerationUnavailable, Message: message}
	}
	return &MCPError{Code: ErrCodeInternalError, Message: message}
}
