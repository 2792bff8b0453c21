package queue

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Publisher is satisfied by *kafka.KafkaClient.
type Publisher interface {
	PublishWithKey(ctx context.Context, topic string, key []byte, msg []byte) error
}

type Producer struct {
	pub    Publisher
	topic  string
	logger *zap.Logger
}

func NewProducer(pub Publisher, topic string, logger *zap.Logger) *Producer {
	return &Producer{pub: pub, topic: topic, logger: logger}
}

// Enqueue returns once the broker has persisted the job. Delivery to a worker
// is not awaited.
func (p *Producer) Enqueue(ctx context.Context, job *ScrapeJob) error {
	data, err := job.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	if err := p.pub.PublishWithKey(ctx, p.topic, []byte(job.CorrelationID), data); err != nil {
		return err
	}
	p.logger.Info("scrape job enqueued",
		zap.String("correlation_id", job.CorrelationID),
		zap.Int("urls", len(job.URLs)),
		zap.String("topic", p.topic))
	return nil
}
