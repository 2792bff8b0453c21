package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fynex/pkg/chunking"
	"fynex/pkg/reqctx"
	"fynex/queue"
	"fynex/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

type TextExtractor interface {
	Extract(page *Page) (string, ContentKind, error)
}

type EventSink interface {
	Publish(ctx context.Context, ev queue.JobEvent) error
}

// JobResult summarises one pass over a job.
type JobResult struct {
	CorrelationID string
	Chunks        int
	FailedURLs    int
	SkippedURLs   int
	// AlreadyDone is set when the ledger shows the job finished on an earlier delivery.
	AlreadyDone bool
}

type Worker struct {
	fetcher   PageFetcher
	extractor TextExtractor
	chunker   chunking.ChunkingClient
	store     repository.ChunkVectorRepo
	events    EventSink
	ledger    repository.JobLedgerRepo
	logger    *zap.Logger
	now       func() time.Time
}

type WorkerOption func(*Worker)

func WithEvents(events EventSink) WorkerOption {
	return func(w *Worker) { w.events = events }
}

func WithLedger(ledger repository.JobLedgerRepo) WorkerOption {
	return func(w *Worker) { w.ledger = ledger }
}

func NewWorker(
	fetcher PageFetcher,
	extractor TextExtractor,
	chunker chunking.ChunkingClient,
	store repository.ChunkVectorRepo,
	logger *zap.Logger,
	opts ...WorkerOption,
) *Worker {
	w := &Worker{
		fetcher:   fetcher,
		extractor: extractor,
		chunker:   chunker,
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ProcessJob attempts every URL of the job in order. Per-URL failures are
// logged and counted; only cancellation of ctx aborts the job, in which case
// it must not be acknowledged.
func (w *Worker) ProcessJob(ctx context.Context, job *queue.ScrapeJob) (*JobResult, error) {
	ctx = reqctx.WithCorrelationID(ctx, job.CorrelationID)
	logger := reqctx.Logger(ctx, w.logger)
	res := &JobResult{CorrelationID: job.CorrelationID}

	if w.ledger != nil {
		rec, err := w.ledger.Get(ctx, job.CorrelationID)
		if err != nil {
			logger.Warn("ledger read failed", zap.Error(err))
		} else if rec != nil && rec.Status == repository.JobCompleted {
			logger.Info("job already completed, skipping redelivery", zap.Int("chunks", rec.Chunks))
			res.Chunks = rec.Chunks
			res.FailedURLs = rec.FailedURLs
			res.AlreadyDone = true
			return res, nil
		}
	}

	started := w.now()
	w.record(ctx, logger, &repository.JobRecord{
		CorrelationID: job.CorrelationID,
		Status:        repository.JobProcessing,
		URLs:          len(job.URLs),
		StartedAt:     started,
	})
	logger.Info("processing scrape job", zap.Int("urls", len(job.URLs)))

	for _, u := range job.URLs {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		n, err := w.processURL(ctx, job.CorrelationID, u)
		switch {
		case err != nil && ctx.Err() != nil:
			return res, ctx.Err()
		case err != nil:
			res.FailedURLs++
			logger.Warn("url failed", zap.String("url", u), zap.Error(err))
		case n == 0:
			res.SkippedURLs++
			logger.Info("no content extracted", zap.String("url", u))
		default:
			res.Chunks += n
			logger.Info("url indexed", zap.String("url", u), zap.Int("chunks", n))
		}
	}

	completed := w.now()
	w.record(ctx, logger, &repository.JobRecord{
		CorrelationID: job.CorrelationID,
		Status:        repository.JobCompleted,
		URLs:          len(job.URLs),
		Chunks:        res.Chunks,
		FailedURLs:    res.FailedURLs,
		StartedAt:     started,
		CompletedAt:   completed,
	})

	if w.events != nil {
		ev := queue.JobEvent{
			CorrelationID: job.CorrelationID,
			URLs:          len(job.URLs),
			Chunks:        res.Chunks,
			FailedURLs:    res.FailedURLs,
			CompletedAt:   completed,
		}
		if err := w.events.Publish(ctx, ev); err != nil {
			logger.Warn("job event publish failed", zap.Error(err))
		}
	}

	logger.Info("scrape job finished",
		zap.Int("chunks", res.Chunks),
		zap.Int("failed_urls", res.FailedURLs),
		zap.Int("skipped_urls", res.SkippedURLs),
		zap.Duration("elapsed", completed.Sub(started)))
	return res, nil
}

// processURL returns the number of chunks written for one URL.
func (w *Worker) processURL(ctx context.Context, correlationID, rawURL string) (int, error) {
	page, err := w.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}

	text, kind, err := w.extractor.Extract(page)
	if err != nil {
		return 0, fmt.Errorf("extract: %w", err)
	}
	if text == "" {
		return 0, nil
	}

	windows, err := w.chunker.ChunkText(ctx, text)
	if err != nil {
		return 0, fmt.Errorf("chunk: %w", err)
	}
	if len(windows) == 0 {
		return 0, nil
	}

	dims := len(windows[0].Vector)
	if _, err := w.store.EnsureCollection(ctx, dims); err != nil {
		return 0, fmt.Errorf("ensure collection: %w", err)
	}

	scrapedAt := w.now().UTC().Format(time.RFC3339)
	chunks := make([]repository.DocumentChunk, 0, len(windows))
	for _, win := range windows {
		if len(win.Vector) != dims {
			return 0, errors.New("embedding model returned mixed vector sizes")
		}
		chunks = append(chunks, repository.DocumentChunk{
			ID:            uuid.NewString(),
			Vector:        win.Vector,
			Content:       win.Text,
			SourceURL:     rawURL,
			CorrelationID: correlationID,
			Metadata: map[string]any{
				"chunkIndex":  win.Index,
				"contentType": string(kind),
				"scrapedAt":   scrapedAt,
			},
		})
	}

	if err := w.store.UpsertChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("upsert: %w", err)
	}
	return len(chunks), nil
}

func (w *Worker) record(ctx context.Context, logger *zap.Logger, rec *repository.JobRecord) {
	if w.ledger == nil {
		return
	}
	if err := w.ledger.Put(ctx, rec); err != nil {
		logger.Warn("ledger write failed", zap.String("status", string(rec.Status)), zap.Error(err))
	}
}
