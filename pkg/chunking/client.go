package chunking

import "context"

type ChunkOutput struct {
	Index  int       `json:"index"`
	Text   string    `json:"text"`
	Vector []float32 `json:"vector"`
}

type ChunkingClient interface {
	ChunkText(ctx context.Context, text string) ([]ChunkOutput, error)
}
