package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobEvent is published by a worker after it has attempted every URL of a job.
type JobEvent struct {
	CorrelationID string    `json:"correlationId"`
	URLs          int       `json:"urls"`
	Chunks        int       `json:"chunks"`
	FailedURLs    int       `json:"failedUrls"`
	CompletedAt   time.Time `json:"completedAt"`
}

type EventPublisher struct {
	pub    Publisher
	topic  string
	logger *zap.Logger
}

func NewEventPublisher(pub Publisher, topic string, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{pub: pub, topic: topic, logger: logger}
}

func (p *EventPublisher) Publish(ctx context.Context, ev JobEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode job event: %w", err)
	}
	return p.pub.PublishWithKey(ctx, p.topic, []byte(ev.CorrelationID), data)
}

// EventWatcher keeps recently seen job events in memory so request handlers can
// learn about finished jobs without scanning the vector store.
type EventWatcher struct {
	reader MessageReader
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu     sync.RWMutex
	events map[string]JobEvent
	seen   map[string]time.Time
}

func NewEventWatcher(reader MessageReader, ttl time.Duration, logger *zap.Logger) *EventWatcher {
	return &EventWatcher{
		reader: reader,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
		events: make(map[string]JobEvent),
		seen:   make(map[string]time.Time),
	}
}

// Run consumes events until ctx is cancelled.
func (w *EventWatcher) Run(ctx context.Context) error {
	defer w.reader.Close()
	for {
		msg, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			w.logger.Warn("event fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		var ev JobEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil || ev.CorrelationID == "" {
			w.logger.Warn("dropping malformed job event", zap.Int64("offset", msg.Offset))
		} else {
			w.Record(ev)
		}

		if err := w.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			w.logger.Debug("event commit failed", zap.Error(err))
		}
	}
}

func (w *EventWatcher) Record(ev JobEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	w.events[ev.CorrelationID] = ev
	w.seen[ev.CorrelationID] = now
	w.pruneLocked(now)
}

// Lookup reports the event recorded for correlationID, if any.
func (w *EventWatcher) Lookup(correlationID string) (JobEvent, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ev, ok := w.events[correlationID]
	if !ok || w.now().Sub(w.seen[correlationID]) > w.ttl {
		return JobEvent{}, false
	}
	return ev, true
}

func (w *EventWatcher) pruneLocked(now time.Time) {
	for id, at := range w.seen {
		if now.Sub(at) > w.ttl {
			delete(w.seen, id)
			delete(w.events, id)
		}
	}
}
