package rag

import (
	"context"
	"time"

	"fynex/pkg/reqctx"
	"fynex/queue"

	"go.uber.org/zap"
)

type ChunkCounter interface {
	CountByCorrelation(ctx context.Context, correlationID string) (uint64, error)
}

// EventLookup reports job-completion events seen on the events topic.
type EventLookup interface {
	Lookup(correlationID string) (queue.JobEvent, bool)
}

type PollResult struct {
	Found    bool
	Attempts int
	// ViaEvent is set when a completion event ended the wait.
	ViaEvent bool
}

// Poller waits for chunks tagged with a correlation id to become visible in
// the store. It never fails: store errors count as a miss for that attempt
// and exhausting the attempts yields Found=false.
type Poller struct {
	counter     ChunkCounter
	events      EventLookup
	interval    time.Duration
	maxAttempts int
	logger      *zap.Logger
}

type PollerOption func(*Poller)

// WithEventLookup lets the poller finish as soon as the worker reports the job
// done instead of waiting for the next store count.
func WithEventLookup(events EventLookup) PollerOption {
	return func(p *Poller) { p.events = events }
}

func NewPoller(counter ChunkCounter, interval time.Duration, maxAttempts int, logger *zap.Logger, opts ...PollerOption) *Poller {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	p := &Poller{
		counter:     counter,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait checks immediately and then once per interval. It returns early with
// ctx's error if ctx is cancelled.
func (p *Poller) Wait(ctx context.Context, correlationID string) (PollResult, error) {
	logger := reqctx.Logger(ctx, p.logger)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if p.events != nil {
			if ev, ok := p.events.Lookup(correlationID); ok {
				logger.Info("job completion event received",
					zap.Int("chunks", ev.Chunks),
					zap.Int("failed_urls", ev.FailedURLs),
					zap.Int("attempt", attempt))
				return PollResult{Found: ev.Chunks > 0, Attempts: attempt, ViaEvent: true}, nil
			}
		}

		n, err := p.counter.CountByCorrelation(ctx, correlationID)
		switch {
		case err != nil && ctx.Err() != nil:
			return PollResult{Attempts: attempt}, ctx.Err()
		case err != nil:
			logger.Debug("poll attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		case n > 0:
			logger.Info("chunks available", zap.Uint64("chunks", n), zap.Int("attempt", attempt))
			return PollResult{Found: true, Attempts: attempt}, nil
		}

		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return PollResult{Attempts: attempt}, ctx.Err()
		case <-ticker.C:
		}
	}

	logger.Info("no chunks before poll ceiling", zap.Int("attempts", p.maxAttempts))
	return PollResult{Attempts: p.maxAttempts}, nil
}
