package queue

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// MessageReader is satisfied by *kafka.Reader.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Delivery is one fetched job. Job is nil when the payload could not be
// decoded, in which case DecodeErr says why.
type Delivery struct {
	Job       *ScrapeJob
	DecodeErr error

	msg    kafka.Message
	reader MessageReader
}

// Ack commits the delivery's offset. Until then a crash makes the broker
// redeliver the job to another consumer in the group.
func (d *Delivery) Ack(ctx context.Context) error {
	return d.reader.CommitMessages(ctx, d.msg)
}

func (d *Delivery) Offset() int64 { return d.msg.Offset }

func (d *Delivery) Partition() int { return d.msg.Partition }

type Consumer struct {
	reader MessageReader
}

func NewConsumer(reader MessageReader) *Consumer {
	return &Consumer{reader: reader}
}

// Next blocks until a job is available or ctx is done.
func (c *Consumer) Next(ctx context.Context) (*Delivery, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	job, decodeErr := DecodeScrapeJob(msg.Value)
	return &Delivery{Job: job, DecodeErr: decodeErr, msg: msg, reader: c.reader}, nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
