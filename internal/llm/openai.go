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

// OpenAIClient implements Client for OpenAI and any API-compatible
// endpoint (set BaseURL to point elsewhere).
type OpenAIClient struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	mu          sync.Mutex
	lastRequest time.Time
}

// OpenAIOption customizes client construction.
type OpenAIOption func(*OpenAIClient)

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) OpenAIOption {
	return func(c *OpenAIClient) {
		if url != "" {
			c.baseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) OpenAIOption {
	return func(c *OpenAIClient) { c.httpClient = hc }
}

// NewOpenAIClient creates a client for the OpenAI chat completions API.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		apiKey:  apiKey,
		baseURL: "https://api.openai.com/v1",
		httpClient: &http.Client{
			Timeout: 10 * time.Minute, // large-context models need headroom
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wire types for the OpenAI chat completions API.

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAITool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description,omitempty"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Tools       []openAITool    `json:"tools,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Role      string           `json:"role"`
			Content   string           `json:"content"`
			ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Chat sends the full conversation with the tool schema and returns the
// next assistant message.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*Message, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: %w", ErrProvider, ErrNoAPIKey)
	}

	log := logging.Named("llm.openai")
	start := time.Now()

	// Minimum gap between requests, mirrors provider rate expectations.
	c.mu.Lock()
	if elapsed := time.Since(c.lastRequest); elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	body := openAIRequest{
		Model:       req.Model,
		Messages:    mapMessagesToOpenAI(req.Messages),
		Tools:       mapToolsToOpenAI(req.Tools),
		MaxTokens:   8192,
		Temperature: req.Temperature,
	}

	// Retry transient failures and rate limits with exponential backoff.
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

		httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to create request: %w", ErrProvider, err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

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

		var parsed openAIResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return nil, fmt.Errorf("%w: failed to parse response: %w", ErrProvider, err)
		}
		if parsed.Error != nil {
			return nil, fmt.Errorf("%w: API error: %s", ErrProvider, parsed.Error.Message)
		}
		if len(parsed.Choices) == 0 {
			return nil, fmt.Errorf("%w: %w", ErrProvider, ErrEmptyResponse)
		}

		choice := parsed.Choices[0]
		msg := &Message{
			Role:      RoleAssistant,
			Content:   choice.Message.Content,
			ToolCalls: mapOpenAIToolCalls(choice.Message.ToolCalls),
		}
		log.Debugw("chat completed",
			"duration", time.Since(start),
			"tool_calls", len(msg.ToolCalls),
			"content_len", len(msg.Content))
		return msg, nil
	}

	return nil, fmt.Errorf("%w: max retries exceeded: %w", ErrProvider, lastErr)
}

func mapMessagesToOpenAI(msgs []Message) []openAIMessage {
	out := make([]openAIMessage, len(msgs))
	for i, m := range msgs {
		om := openAIMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, call := range m.ToolCalls {
			oc := openAIToolCall{ID: call.ID, Type: "function"}
			oc.Function.Name = call.Name
			oc.Function.Arguments = call.Arguments
			om.ToolCalls = append(om.ToolCalls, oc)
		}
		out[i] = om
	}
	return out
}

func mapToolsToOpenAI(tools []ToolDefinition) []openAITool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openAITool, len(tools))
	for i, t := range tools {
		ot := openAITool{Type: "function"}
		ot.Function.Name = t.Name
		ot.Function.Description = t.Description
		ot.Function.Parameters = ObjectSchema(t.Parameters)
		out[i] = ot
	}
	return out
}

func mapOpenAIToolCalls(calls []openAIToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCall, 0, len(calls))
	for _, c := range calls {
		if c.Type != "" && c.Type != "function" {
			continue
		}
		out = append(out, ToolCall{
			ID:        c.ID,
			Name:      c.Function.Name,
			Arguments: c.Function.Arguments,
		})
	}
	return out
}
