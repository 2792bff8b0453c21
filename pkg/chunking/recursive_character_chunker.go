package chunking

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"fynex/pkg/embedding"

	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"
)

type RecursiveCharacterChunking struct {
	splitter   textsplitter.RecursiveCharacter
	embed      embedding.Client
	logger     *zap.Logger
	maxRetries int
	baseDelay  time.Duration
}

type Option func(*RecursiveCharacterChunking)

func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(c *RecursiveCharacterChunking) {
		c.maxRetries = maxRetries
		c.baseDelay = baseDelay
	}
}

// NewRecursiveCharacterChunking splits text into windows of at most chunkSize
// characters with chunkOverlap characters carried into the next window.
func NewRecursiveCharacterChunking(embed embedding.Client, chunkSize, chunkOverlap int, logger *zap.Logger, opts ...Option) *RecursiveCharacterChunking {
	c := &RecursiveCharacterChunking{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
		),
		embed:      embed,
		logger:     logger,
		maxRetries: 3,
		baseDelay:  200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RecursiveCharacterChunking) Split(text string) ([]string, error) {
	windows, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, err
	}
	out := windows[:0]
	for _, w := range windows {
		if strings.TrimSpace(w) != "" {
			out = append(out, w)
		}
	}
	return out, nil
}

// ChunkText embeds every window independently. A window whose embedding still
// fails after retries is dropped so the rest of the document survives.
func (c *RecursiveCharacterChunking) ChunkText(ctx context.Context, text string) ([]ChunkOutput, error) {
	windows, err := c.Split(text)
	if err != nil {
		return nil, err
	}

	result := make([]ChunkOutput, 0, len(windows))
	for i, w := range windows {
		vec, err := c.getEmbeddingsWithRetry(ctx, []string{w})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("embed failed after retries, dropping window",
				zap.Int("window", i),
				zap.Int("chars", len(w)),
				zap.Error(err))
			continue
		}
		result = append(result, ChunkOutput{
			Index:  i,
			Text:   w,
			Vector: vec[0],
		})
	}

	return result, nil
}

func (c *RecursiveCharacterChunking) getEmbeddingsWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		vec, err := c.embed.GetEmbeddings(ctx, texts)
		if err == nil {
			if len(vec) != len(texts) {
				return nil, fmt.Errorf("got %d vectors for %d texts", len(vec), len(texts))
			}
			return vec, nil
		}
		lastErr = err

		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.calculateBackoffDelay(attempt)):
			}
		}
	}

	return nil, lastErr
}

// baseDelay * 2^attempt with up to 25% jitter either way.
func (c *RecursiveCharacterChunking) calculateBackoffDelay(attempt int) time.Duration {
	delay := float64(c.baseDelay) * math.Pow(2, float64(attempt))
	jitter := delay * 0.25 * (rand.Float64()*2 - 1)
	return time.Duration(delay + jitter)
}
