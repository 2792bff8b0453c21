package embedding

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

type EmbeddingRequest struct {
	Inputs []string `json:"inputs"`
}

type EmbeddingResponse [][]float32

type Client interface {
	// One vector per input text, in input order.
	// Input: ["this is a text"]
	// Output: [ [0.12, -0.33, 0.57, ...] ]
	GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

type Config struct {
	// Provider is "gemini" or "tei".
	Provider   string
	APIKey     string
	Model      string
	Dimensions int
	TEIURL     string
	Timeout    time.Duration
}

// New builds the embedding client selected by cfg.Provider.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGeminiEmbedder(ctx, cfg.APIKey, cfg.Model, cfg.Dimensions, cfg.Timeout, logger)
	case "tei":
		return NewTEIClient(cfg.TEIURL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)))
}
