package kafka

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type KafkaClient struct {
	writer  *kafka.Writer
	brokers []string
	logger  *zap.Logger
}

// NewClient creates a producer for the given brokers. Writes wait for the full
// in-sync replica set so an acknowledged message survives a broker restart.
func NewClient(ctx context.Context, brokers []string, logger *zap.Logger) (*KafkaClient, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers cannot be empty")
	}

	// topic is set per message
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		MaxAttempts:            3,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		Compression:            kafka.Snappy,
		ErrorLogger:            kafka.LoggerFunc(logger.Sugar().Errorf),
	}

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(dialCtx, "tcp", brokers[0])
	if err != nil {
		return nil, fmt.Errorf("failed to connect to kafka: %w", err)
	}
	conn.Close()

	return &KafkaClient{writer: writer, brokers: brokers, logger: logger}, nil
}

// PublishWithKey sends a message with a key to the specified Kafka topic.
// Messages sharing a key land on the same partition.
func (k *KafkaClient) PublishWithKey(ctx context.Context, topic string, key []byte, msg []byte) error {
	if topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	message := kafka.Message{
		Topic: topic,
		Key:   key,
		Value: msg,
		Time:  time.Now(),
	}

	if err := k.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to publish message to topic %s: %w", topic, err)
	}
	return nil
}

// EnsureTopic creates topic with the given partition count if it is missing
// and returns the partition count the topic actually has. An existing topic
// keeps its partitions.
func (k *KafkaClient) EnsureTopic(ctx context.Context, topic string, partitions int) (int, error) {
	conn, err := kafka.DialContext(ctx, "tcp", k.brokers[0])
	if err != nil {
		return 0, fmt.Errorf("failed to connect to kafka: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return 0, fmt.Errorf("failed to find controller: %w", err)
	}
	cconn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, fmt.Sprint(controller.Port)))
	if err != nil {
		return 0, fmt.Errorf("failed to connect to controller: %w", err)
	}
	defer cconn.Close()

	if err := cconn.CreateTopics(topicConfig(topic, partitions)); err != nil {
		return 0, fmt.Errorf("failed to create topic %s: %w", topic, err)
	}

	parts, err := conn.ReadPartitions(topic)
	if err != nil {
		return 0, fmt.Errorf("failed to read partitions of %s: %w", topic, err)
	}
	n := countPartitions(parts, topic)
	k.logger.Debug("kafka topic ensured", zap.String("topic", topic), zap.Int("partitions", n))
	return n, nil
}

func topicConfig(topic string, partitions int) kafka.TopicConfig {
	return kafka.TopicConfig{Topic: topic, NumPartitions: max(partitions, 1), ReplicationFactor: 1}
}

func countPartitions(parts []kafka.Partition, topic string) int {
	n := 0
	for _, p := range parts {
		if p.Topic == topic {
			n++
		}
	}
	return n
}

// Close gracefully closes the Kafka writer
func (k *KafkaClient) Close() error {
	if k.writer != nil {
		return k.writer.Close()
	}
	return nil
}
