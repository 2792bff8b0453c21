package repository

import "context"

// DocumentChunk is one embedded window of extracted page text. Chunks are
// written once and never edited.
type DocumentChunk struct {
	ID            string         `json:"id"`
	Vector        []float32      `json:"-"`
	Content       string         `json:"content"`
	SourceURL     string         `json:"source"`
	CorrelationID string         `json:"correlationId"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

type RetrievalResult struct {
	ChunkID       string  `json:"chunkId"`
	Content       string  `json:"content"`
	SourceURL     string  `json:"sourceUrl"`
	CorrelationID string  `json:"correlationId"`
	Score         float32 `json:"similarityScore"`
}

// ChunkVectorRepo is the write side used by scraper workers.
type ChunkVectorRepo interface {
	// EnsureCollection makes sure a collection sized for dims exists and
	// returns its effective name.
	EnsureCollection(ctx context.Context, dims int) (string, error)
	UpsertChunks(ctx context.Context, chunks []DocumentChunk) error
}

// ChunkSearchRepo is the read side used by the poller and the retriever.
type ChunkSearchRepo interface {
	SearchSimilar(ctx context.Context, vector []float32, correlationID string, limit int) ([]RetrievalResult, error)
	CountByCorrelation(ctx context.Context, correlationID string) (uint64, error)
}
