package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type ReaderConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	// StartNewest makes a fresh group begin at the end of the topic
	// instead of replaying it.
	StartNewest bool
}

// NewReader returns a consumer-group reader with manual commits. Callers fetch
// with FetchMessage and commit only after the message has been handled, which
// gives at-least-once delivery.
func NewReader(cfg ReaderConfig, logger *zap.Logger) *kafka.Reader {
	start := kafka.FirstOffset
	if cfg.StartNewest {
		start = kafka.LastOffset
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0,
		StartOffset:    start,
		ErrorLogger:    kafka.LoggerFunc(logger.Sugar().Errorf),
	})
}
