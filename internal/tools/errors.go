package tools

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/raphaelgruber/ravan/internal/service"
)

// ErrorResult creates a tool error result with optional recovery hint.
// If hint is non-empty, formats as "{msg}. {hint}".
// The error is a tool result, never a protocol error, so the caller can see
// it and self-correct.
func ErrorResult(msg, hint string) *mcp.CallToolResult {
	text := msg
	if hint != "" {
		text = msg + ". " + hint
	}
	return mcp.NewToolResultError(text)
}

// JSONResult renders v as indented JSON text content.
func JSONResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ErrorResult(fmt.Sprintf("failed to encode result: %v", err), "")
	}
	return mcp.NewToolResultText(string(data))
}

// serviceError converts a service failure into a tool error.
func serviceError(action string, err error) *mcp.CallToolResult {
	if service.IsValidation(err) {
		return ErrorResult(err.Error(), "Check the tool arguments")
	}
	return ErrorResult(fmt.Sprintf("%s failed: %v", action, err), "Try again later")
}
