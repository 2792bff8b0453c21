package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"fynex/pkg/embedding"
	"fynex/pkg/reqctx"
	"fynex/repository"

	"go.uber.org/zap"
)

type RetrieverConfig struct {
	// SearchLimit is how many neighbours are requested per query before filtering.
	SearchLimit  int
	PerQueryTopK int
	MaxChunks    int
}

type Retriever struct {
	embed  embedding.Client
	store  repository.ChunkSearchRepo
	cfg    RetrieverConfig
	logger *zap.Logger
}

func NewRetriever(embed embedding.Client, store repository.ChunkSearchRepo, cfg RetrieverConfig, logger *zap.Logger) *Retriever {
	if cfg.PerQueryTopK <= 0 {
		cfg.PerQueryTopK = 3
	}
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = 8
	}
	if cfg.SearchLimit < cfg.PerQueryTopK {
		cfg.SearchLimit = cfg.PerQueryTopK
	}
	return &Retriever{embed: embed, store: store, cfg: cfg, logger: logger}
}

// Retrieve runs one similarity search per query in parallel and fuses the
// results. A failing query contributes nothing.
func (r *Retriever) Retrieve(ctx context.Context, queries []string, correlationID string) ([]repository.RetrievalResult, error) {
	if len(queries) == 0 {
		return nil, nil
	}
	logger := reqctx.Logger(ctx, r.logger)

	vectors, err := r.embed.GetEmbeddings(ctx, queries)
	if err != nil {
		return nil, fmt.Errorf("embed queries: %w", err)
	}
	if len(vectors) != len(queries) {
		return nil, fmt.Errorf("got %d query vectors for %d queries", len(vectors), len(queries))
	}

	perQuery := make([][]repository.RetrievalResult, len(queries))
	var wg sync.WaitGroup
	for i := range queries {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results, err := r.store.SearchSimilar(ctx, vectors[i], correlationID, r.cfg.SearchLimit)
			if err != nil {
				logger.Warn("similarity search failed", zap.String("query", queries[i]), zap.Error(err))
				return
			}
			perQuery[i] = TopK(FilterByCorrelation(results, correlationID), r.cfg.PerQueryTopK)
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fused := Fuse(perQuery, r.cfg.MaxChunks)
	logger.Info("retrieval fused",
		zap.Int("queries", len(queries)),
		zap.Int("chunks", len(fused)))
	return fused, nil
}

func FilterByCorrelation(results []repository.RetrievalResult, correlationID string) []repository.RetrievalResult {
	out := make([]repository.RetrievalResult, 0, len(results))
	for _, r := range results {
		if r.CorrelationID == correlationID {
			out = append(out, r)
		}
	}
	return out
}

// TopK keeps the k highest scoring results, ties broken by original order.
func TopK(results []repository.RetrievalResult, k int) []repository.RetrievalResult {
	sorted := append([]repository.RetrievalResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}

// Fuse pools per-query results in query order, drops repeated chunk ids (first
// occurrence wins) and keeps at most maxChunks.
func Fuse(perQuery [][]repository.RetrievalResult, maxChunks int) []repository.RetrievalResult {
	seen := make(map[string]struct{})
	var pooled []repository.RetrievalResult
	for _, results := range perQuery {
		for _, r := range results {
			if _, ok := seen[r.ChunkID]; ok {
				continue
			}
			seen[r.ChunkID] = struct{}{}
			pooled = append(pooled, r)
			if len(pooled) == maxChunks {
				return pooled
			}
		}
	}
	return pooled
}

// BuildContext joins chunk contents with a blank line between them.
func BuildContext(chunks []repository.RetrievalResult) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Content)
	}
	return strings.Join(parts, "\n\n")
}
