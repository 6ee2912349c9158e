// Package llm abstracts the completion service behind a single Chat call:
// full message history plus a tool schema in, one assistant message out.
// Providers are interchangeable; the tool loop never sees wire formats.
package llm

import "context"

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON-encoded argument object
}

// Message is one turn in the conversation. Tool-role messages carry the
// result of the call identified by ToolCallID.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// HasToolCalls reports whether the message requests any tool invocations.
func (m *Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// Property describes a single parameter in a tool schema.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Schema is a JSON-schema-like parameter spec for a tool.
type Schema struct {
	Type       string              `json:"type"` // always "object"
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// ToolDefinition describes a tool the model may invoke.
type ToolDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  Schema `json:"parameters"`
}

// ChatRequest is a single completion-service invocation.
type ChatRequest struct {
	Model       string
	Temperature float64
	Messages    []Message
	Tools       []ToolDefinition
}

// Client is the completion service. Implementations must return exactly
// one assistant message (text and/or tool calls) or an error wrapping
// ErrProvider.
type Client interface {
	Chat(ctx context.Context, req *ChatRequest) (*Message, error)
}

// ObjectSchema builds the wire-level JSON schema map for a tool definition.
// Shared by providers that take loosely typed schema objects.
func ObjectSchema(s Schema) map[string]any {
	props := make(map[string]any, len(s.Properties))
	for name, p := range s.Properties {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[name] = prop
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(s.Required) > 0 {
		schema["required"] = s.Required
	}
	return schema
}
