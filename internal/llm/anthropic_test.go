package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicChatToolUse(t *testing.T) {
	var captured anthropicRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		resp := `{
			"content": [
				{"type": "text", "text": "reading now"},
				{"type": "tool_use", "id": "toolu_1", "name": "read_file", "input": {"path": "b.ts"}}
			],
			"stop_reason": "tool_use"
		}`
		_, _ = w.Write([]byte(resp))
	}))
	defer server.Close()

	client := NewAnthropicClient("test-key", WithAnthropicBaseURL(server.URL))

	msg, err := client.Chat(context.Background(), &ChatRequest{
		Model: "claude-sonnet-4-5",
		Messages: []Message{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleUser, Content: "go"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "reading now", msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "toolu_1", msg.ToolCalls[0].ID)
	assert.JSONEq(t, `{"path":"b.ts"}`, msg.ToolCalls[0].Arguments)

	// System prompt is lifted out of the message list.
	assert.Equal(t, "sys", captured.System)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
}

func TestMapMessagesToAnthropicToolResult(t *testing.T) {
	msgs := []Message{
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "read_file", Arguments: `{"path":"x"}`}}},
		{Role: RoleTool, ToolCallID: "c1", Content: `{"ok":true}`},
	}

	system, wire, err := mapMessagesToAnthropic(msgs)
	require.NoError(t, err)
	assert.Empty(t, system)
	require.Len(t, wire, 2)

	blocks, ok := wire[0].Content.([]anthropicContentBlock)
	require.True(t, ok)
	require.Len(t, blocks, 1)
	assert.Equal(t, "tool_use", blocks[0].Type)
	assert.Equal(t, "c1", blocks[0].ID)

	results, ok := wire[1].Content.([]anthropicContentBlock)
	require.True(t, ok)
	assert.Equal(t, "tool_result", results[0].Type)
	assert.Equal(t, "c1", results[0].ToolUseID)
	assert.Equal(t, "user", wire[1].Role)
}
