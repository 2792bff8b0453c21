package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type GeminiEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int
	timeout    time.Duration
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dimensions int, timeout time.Duration, logger *zap.Logger) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	logger.Info("gemini embedder initialized",
		zap.String("model", model),
		zap.Int("dimensions", dimensions))

	return &GeminiEmbedder{client: client, model: model, dimensions: dimensions, timeout: timeout}, nil
}

func (g *GeminiEmbedder) GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}

	cfg := &genai.EmbedContentConfig{}
	if g.dimensions > 0 {
		cfg.OutputDimensionality = genai.Ptr(int32(g.dimensions))
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("embed content failed: %w", err)
	}
	return embeddingValues(resp, len(texts))
}

func embeddingValues(resp *genai.EmbedContentResponse, want int) ([][]float32, error) {
	if resp == nil || len(resp.Embeddings) != want {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("model returned %d embeddings for %d inputs", got, want)
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", i)
		}
		out[i] = e.Values
	}
	return out, nil
}
