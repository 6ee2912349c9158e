// Package tools provides the tool registry for the agentic tool loop.
//
// Tools are plain handlers over JSON-ish argument maps. The loop engine
// looks them up by name, dispatches sequentially, and feeds their string
// results back into the conversation. File-touching tools are constructed
// over a sandbox so a planner can never reach outside the declared root.
package tools

import (
	"context"
	"encoding/json"

	"plgn/internal/llm"
)

// ExecuteFunc is the signature for tool execution. The returned string is
// placed verbatim into the conversation as the tool result, so handlers
// return JSON.
type ExecuteFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool defines a named capability the planner may invoke.
type Tool struct {
	// Name is the unique identifier for the tool.
	Name string

	// Description explains what the tool does, for the model.
	Description string

	// Execute runs the tool with the given arguments.
	Execute ExecuteFunc

	// Schema defines the expected arguments.
	Schema llm.Schema
}

// Validate checks if the tool definition is valid.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// Definition converts the tool to the completion-service schema form.
func (t *Tool) Definition() llm.ToolDefinition {
	schema := t.Schema
	if schema.Type == "" {
		schema.Type = "object"
	}
	return llm.ToolDefinition{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  schema,
	}
}

// ErrorResult encodes an error as a structured tool result. Handlers and
// the loop use this so the planner sees {"error": ...} and can adapt
// instead of the loop aborting.
func ErrorResult(msg string) string {
	out, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error":"internal error"}`
	}
	return string(out)
}

// OKResult encodes an arbitrary payload as a JSON tool result.
func OKResult(payload any) string {
	out, err := json.Marshal(payload)
	if err != nil {
		return ErrorResult("failed to encode result")
	}
	return string(out)
}

// StringArg extracts a string argument, with ok=false when absent or of
// the wrong type.
func StringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok
}

// BoolArg extracts a boolean argument, defaulting when absent.
func BoolArg(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

// FloatArg extracts a numeric argument, defaulting when absent. JSON
// numbers decode as float64.
func FloatArg(args map[string]any, key string, def float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return def
}
