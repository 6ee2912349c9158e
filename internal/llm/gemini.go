package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"plgn/internal/logging"
)

// GeminiClient implements Client on top of the Google GenAI SDK.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a client for the Gemini API.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %w", ErrProvider, ErrNoAPIKey)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create GenAI client: %w", ErrProvider, err)
	}
	return &GeminiClient{client: client}, nil
}

// Chat sends the full conversation and returns the next assistant message.
func (c *GeminiClient) Chat(ctx context.Context, req *ChatRequest) (*Message, error) {
	log := logging.Named("llm.gemini")
	start := time.Now()

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}

	system, contents := mapMessagesToGemini(req.Messages)
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		cfg.Tools = []*genai.Tool{{
			FunctionDeclarations: mapToolsToGemini(req.Tools),
		}}
	}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: GenAI generate failed: %w", ErrProvider, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: %w", ErrProvider, ErrEmptyResponse)
	}

	msg := &Message{Role: RoleAssistant}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				args = []byte("{}")
			}
			id := part.FunctionCall.ID
			if id == "" {
				// Gemini omits call ids; synthesize so tool results correlate.
				id = uuid.NewString()
			}
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{
				ID:        id,
				Name:      part.FunctionCall.Name,
				Arguments: string(args),
			})
		}
	}
	msg.Content = text.String()

	log.Debugw("chat completed",
		"duration", time.Since(start),
		"tool_calls", len(msg.ToolCalls))
	return msg, nil
}

// mapMessagesToGemini converts the conversation to GenAI contents.
// Tool results become functionResponse parts; the function name is
// recovered from the model turn that requested the call.
func mapMessagesToGemini(msgs []Message) (string, []*genai.Content) {
	var system string
	contents := make([]*genai.Content, 0, len(msgs))
	callNames := make(map[string]string)

	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			system = m.Content

		case RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))

		case RoleAssistant:
			parts := make([]*genai.Part, 0, len(m.ToolCalls)+1)
			if m.Content != "" {
				parts = append(parts, genai.NewPartFromText(m.Content))
			}
			for _, call := range m.ToolCalls {
				callNames[call.ID] = call.Name
				var args map[string]any
				if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
					args = map[string]any{}
				}
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   call.ID,
						Name: call.Name,
						Args: args,
					},
				})
			}
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: parts})

		case RoleTool:
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       m.ToolCallID,
						Name:     callNames[m.ToolCallID],
						Response: map[string]any{"result": m.Content},
					},
				}},
			})
		}
	}
	return system, contents
}

func mapToolsToGemini(tools []ToolDefinition) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		props := make(map[string]*genai.Schema, len(t.Parameters.Properties))
		for name, p := range t.Parameters.Properties {
			props[name] = &genai.Schema{
				Type:        geminiType(p.Type),
				Description: p.Description,
			}
		}
		out[i] = &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   t.Parameters.Required,
			},
		}
	}
	return out
}

func geminiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}
