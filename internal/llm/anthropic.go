package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"plgn/internal/logging"
)

// AnthropicClient implements Client for the Anthropic messages API.
type AnthropicClient struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	mu          sync.Mutex
	lastRequest time.Time
}

// AnthropicOption customizes client construction.
type AnthropicOption func(*AnthropicClient)

// WithAnthropicBaseURL overrides the API endpoint.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(c *AnthropicClient) {
		if url != "" {
			c.baseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// NewAnthropicClient creates a client for the Anthropic messages API.
func NewAnthropicClient(apiKey string, opts ...AnthropicOption) *AnthropicClient {
	c := &AnthropicClient{
		apiKey:  apiKey,
		baseURL: "https://api.anthropic.com/v1",
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wire types for the Anthropic messages API. Content is polymorphic:
// plain strings for simple turns, block lists for tool use and results.

type anthropicContentBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Chat sends the full conversation and returns the next assistant message.
func (c *AnthropicClient) Chat(ctx context.Context, req *ChatRequest) (*Message, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: %w", ErrProvider, ErrNoAPIKey)
	}

	log := logging.Named("llm.anthropic")
	start := time.Now()

	c.mu.Lock()
	if elapsed := time.Since(c.lastRequest); elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	system, wireMsgs, err := mapMessagesToAnthropic(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}

	body := anthropicRequest{
		Model:       req.Model,
		MaxTokens:   8192,
		System:      system,
		Messages:    wireMsgs,
		Tools:       mapToolsToAnthropic(req.Tools),
		Temperature: req.Temperature,
	}

	const maxRetries = 3
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(1<<uint(attempt-1)) * time.Second):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrProvider, ctx.Err())
			}
		}

		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to marshal request: %w", ErrProvider, err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/messages", bytes.NewReader(jsonData))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to create request: %w", ErrProvider, err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", c.apiKey)
		httpReq.Header.Set("anthropic-version", "2023-06-01")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", ErrProvider, ctx.Err())
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limit exceeded (429): %s", strings.TrimSpace(string(respBody)))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: API request failed with status %d: %s", ErrProvider, resp.StatusCode, string(respBody))
		}

		var parsed anthropicResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return nil, fmt.Errorf("%w: failed to parse response: %w", ErrProvider, err)
		}
		if parsed.Error != nil {
			return nil, fmt.Errorf("%w: API error: %s", ErrProvider, parsed.Error.Message)
		}

		msg := &Message{Role: RoleAssistant}
		var text strings.Builder
		for _, block := range parsed.Content {
			switch block.Type {
			case "text":
				text.WriteString(block.Text)
			case "tool_use":
				args, err := json.Marshal(block.Input)
				if err != nil {
					args = []byte("{}")
				}
				msg.ToolCalls = append(msg.ToolCalls, ToolCall{
					ID:        block.ID,
					Name:      block.Name,
					Arguments: string(args),
				})
			}
		}
		msg.Content = text.String()

		log.Debugw("chat completed",
			"duration", time.Since(start),
			"stop_reason", parsed.StopReason,
			"tool_calls", len(msg.ToolCalls))
		return msg, nil
	}

	return nil, fmt.Errorf("%w: max retries exceeded: %w", ErrProvider, lastErr)
}

// mapMessagesToAnthropic splits out the system prompt and converts the
// remaining turns. Assistant tool calls become tool_use blocks; tool
// results become tool_result blocks inside a user turn.
func mapMessagesToAnthropic(msgs []Message) (string, []anthropicMessage, error) {
	var system string
	out := make([]anthropicMessage, 0, len(msgs))

	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			system = m.Content

		case RoleUser:
			out = append(out, anthropicMessage{Role: "user", Content: m.Content})

		case RoleAssistant:
			if !m.HasToolCalls() {
				out = append(out, anthropicMessage{Role: "assistant", Content: m.Content})
				continue
			}
			blocks := make([]anthropicContentBlock, 0, len(m.ToolCalls)+1)
			if m.Content != "" {
				blocks = append(blocks, anthropicContentBlock{Type: "text", Text: m.Content})
			}
			for _, call := range m.ToolCalls {
				var input map[string]any
				if err := json.Unmarshal([]byte(call.Arguments), &input); err != nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropicContentBlock{
					Type:  "tool_use",
					ID:    call.ID,
					Name:  call.Name,
					Input: input,
				})
			}
			out = append(out, anthropicMessage{Role: "assistant", Content: blocks})

		case RoleTool:
			out = append(out, anthropicMessage{
				Role: "user",
				Content: []anthropicContentBlock{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Content,
				}},
			})

		default:
			return "", nil, fmt.Errorf("unsupported message role: %s", m.Role)
		}
	}
	return system, out, nil
}

func mapToolsToAnthropic(tools []ToolDefinition) []anthropicTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]anthropicTool, len(tools))
	for i, t := range tools {
		out[i] = anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: ObjectSchema(t.Parameters),
		}
	}
	return out
}
