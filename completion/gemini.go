package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type GeminiConfig struct {
	APIKey         string
	ChatModel      string
	ExpansionModel string
	Temperature    float32
	Timeout        time.Duration
}

// GeminiClient implements Client on top of the Gemini API.
type GeminiClient struct {
	client *genai.Client
	cfg    GeminiConfig
	logger *zap.Logger
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	logger.Info("gemini completion client initialized",
		zap.String("chat_model", cfg.ChatModel),
		zap.String("expansion_model", cfg.ExpansionModel),
		zap.Duration("timeout", cfg.Timeout))

	return &GeminiClient{client: client, cfg: cfg, logger: logger}, nil
}

func (g *GeminiClient) Stream(ctx context.Context, req *Request, fn StreamFunc) error {
	contents, err := convertMessages(req.Messages)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.cfg.Temperature),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: toFunctionDeclarations(req.Tools)}}
	}

	start := time.Now()
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.cfg.ChatModel, contents, config) {
		if err != nil {
			return fmt.Errorf("chat stream failed: %w", err)
		}
		for _, ev := range eventsFromResponse(resp) {
			if err := fn(ev); err != nil {
				if errors.Is(err, ErrStop) {
					g.logger.Debug("chat stream stopped by caller", zap.Duration("elapsed", time.Since(start)))
					return nil
				}
				return err
			}
		}
	}

	g.logger.Debug("chat stream finished",
		zap.Int("message_count", len(req.Messages)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (g *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.ExpansionModel,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{Temperature: genai.Ptr(g.cfg.Temperature)})
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}

	var out strings.Builder
	for _, ev := range eventsFromResponse(resp) {
		out.WriteString(ev.Text)
	}
	if out.Len() == 0 {
		return "", errors.New("no response generated from model")
	}
	return out.String(), nil
}

// convertMessages maps conversation history onto Gemini contents. Tool calls are
// replayed as function-call parts and tool results as function-response parts.
func convertMessages(messages []Message) ([]*genai.Content, error) {
	if len(messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}

	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch {
		case msg.ToolCall != nil:
			contents = append(contents, &genai.Content{
				Role: string(genai.RoleModel),
				Parts: []*genai.Part{{FunctionCall: &genai.FunctionCall{
					ID:   msg.ToolCall.ID,
					Name: msg.ToolCall.Name,
					Args: msg.ToolCall.Arguments,
				}}},
			})
		case msg.ToolResult != nil:
			contents = append(contents, &genai.Content{
				Role: string(genai.RoleUser),
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					ID:       msg.ToolResult.CallID,
					Name:     msg.ToolResult.Name,
					Response: map[string]any{"content": msg.ToolResult.Content},
				}}},
			})
		default:
			role := genai.RoleUser
			if msg.Role == RoleAssistant {
				role = genai.RoleModel
			}
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.Role(role)))
		}
	}
	return contents, nil
}

func toFunctionDeclarations(tools []ToolSpec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decl := &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
		}
		if len(t.Parameters) > 0 {
			props := make(map[string]*genai.Schema, len(t.Parameters))
			for name, p := range t.Parameters {
				props[name] = &genai.Schema{Type: schemaType(p.Type), Description: p.Description}
			}
			decl.Parameters = &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   t.Required,
			}
		}
		decls = append(decls, decl)
	}
	return decls
}

func schemaType(t string) genai.Type {
	switch t {
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

// eventsFromResponse flattens the first candidate of a streamed chunk into events.
func eventsFromResponse(resp *genai.GenerateContentResponse) []Event {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}

	var events []Event
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.FunctionCall != nil {
			events = append(events, Event{ToolCall: &ToolCall{
				ID:        part.FunctionCall.ID,
				Name:      part.FunctionCall.Name,
				Arguments: part.FunctionCall.Args,
			}})
			continue
		}
		if part.Text != "" {
			events = append(events, Event{Text: part.Text})
		}
	}
	return events
}
