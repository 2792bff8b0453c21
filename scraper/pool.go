package scraper

import (
	"context"
	"errors"
	"sync"
	"time"

	"fynex/queue"

	"go.uber.org/zap"
)

// JobSource yields deliveries from the jobs topic.
type JobSource interface {
	Next(ctx context.Context) (*queue.Delivery, error)
}

type JobProcessor interface {
	ProcessJob(ctx context.Context, job *queue.ScrapeJob) (*JobResult, error)
}

// Pool runs one consume loop per source. Each source should own its own
// reader so the consumer group spreads partitions across them.
type Pool struct {
	sources    []JobSource
	processor  JobProcessor
	logger     *zap.Logger
	ackTimeout time.Duration
	retryDelay time.Duration
}

func NewPool(sources []JobSource, processor JobProcessor, logger *zap.Logger) *Pool {
	return &Pool{
		sources:    sources,
		processor:  processor,
		logger:     logger,
		ackTimeout: 5 * time.Second,
		retryDelay: time.Second,
	}
}

// Run blocks until ctx is cancelled and every loop has returned.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i, src := range p.sources {
		wg.Add(1)
		go func(id int, src JobSource) {
			defer wg.Done()
			p.loop(ctx, id, src)
		}(i, src)
	}
	p.logger.Info("scraper pool started", zap.Int("workers", len(p.sources)))
	wg.Wait()
	p.logger.Info("scraper pool stopped")
}

func (p *Pool) loop(ctx context.Context, id int, src JobSource) {
	logger := p.logger.With(zap.Int("worker", id))
	for {
		d, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			logger.Warn("fetch job failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.retryDelay):
			}
			continue
		}

		if d.DecodeErr != nil {
			// never decodable, redelivery would loop forever
			logger.Error("dropping malformed job",
				zap.Int("partition", d.Partition()),
				zap.Int64("offset", d.Offset()),
				zap.Error(d.DecodeErr))
			p.ack(ctx, logger, d)
			continue
		}

		logger.Debug("job received",
			zap.String("correlation_id", d.Job.CorrelationID),
			zap.Int("partition", d.Partition()),
			zap.Int64("offset", d.Offset()))

		if _, err := p.processor.ProcessJob(ctx, d.Job); err != nil {
			logger.Warn("job interrupted, leaving it for redelivery",
				zap.String("correlation_id", d.Job.CorrelationID),
				zap.Int("partition", d.Partition()),
				zap.Error(err))
			if ctx.Err() != nil {
				return
			}
			continue
		}
		p.ack(ctx, logger, d)
	}
}

// ack commits even when ctx was cancelled after the job finished.
func (p *Pool) ack(ctx context.Context, logger *zap.Logger, d *queue.Delivery) {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.ackTimeout)
	defer cancel()
	if err := d.Ack(actx); err != nil {
		logger.Warn("ack failed, job may be redelivered",
			zap.Int("partition", d.Partition()),
			zap.Int64("offset", d.Offset()),
			zap.Error(err))
	}
}
