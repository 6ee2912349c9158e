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

func TestOpenAIChatToolCalls(t *testing.T) {
	var captured openAIRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		resp := `{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "read_file", "arguments": "{\"path\":\"a.ts\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}]
		}`
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(resp))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", WithBaseURL(server.URL))

	msg, err := client.Chat(context.Background(), &ChatRequest{
		Model:       "gpt-4o",
		Temperature: 0.2,
		Messages: []Message{
			{Role: RoleSystem, Content: "be helpful"},
			{Role: RoleUser, Content: "read a.ts"},
		},
		Tools: []ToolDefinition{{
			Name:        "read_file",
			Description: "Read a file",
			Parameters: Schema{
				Type: "object",
				Properties: map[string]Property{
					"path": {Type: "string", Description: "file path"},
				},
				Required: []string{"path"},
			},
		}},
	})
	require.NoError(t, err)

	// Response mapping
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "call_1", msg.ToolCalls[0].ID)
	assert.Equal(t, "read_file", msg.ToolCalls[0].Name)
	assert.JSONEq(t, `{"path":"a.ts"}`, msg.ToolCalls[0].Arguments)

	// Request mapping
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "function", captured.Tools[0].Type)
	assert.Equal(t, "read_file", captured.Tools[0].Function.Name)
	params := captured.Tools[0].Function.Parameters
	assert.Equal(t, "object", params["type"])
}

func TestOpenAIChatTextResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"done"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", WithBaseURL(server.URL))
	msg, err := client.Chat(context.Background(), &ChatRequest{Model: "gpt-4o", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "done", msg.Content)
	assert.False(t, msg.HasToolCalls())
}

func TestOpenAIChatNoKey(t *testing.T) {
	client := NewOpenAIClient("")
	_, err := client.Chat(context.Background(), &ChatRequest{Model: "gpt-4o"})
	assert.ErrorIs(t, err, ErrProvider)
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestOpenAIChatAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad request"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", WithBaseURL(server.URL))
	_, err := client.Chat(context.Background(), &ChatRequest{Model: "gpt-4o"})
	assert.ErrorIs(t, err, ErrProvider)
	assert.Contains(t, err.Error(), "status 400")
}

func TestOpenAIChatEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", WithBaseURL(server.URL))
	_, err := client.Chat(context.Background(), &ChatRequest{Model: "gpt-4o"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
