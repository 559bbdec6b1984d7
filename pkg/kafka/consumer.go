// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. The consumer exposes a poll/commit interface with a
// bounded wait per poll, while the producer serialises events as JSON.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/config"
	"github.com/segmentio/kafka-go"
)

// ErrClosed is returned by Poll once the underlying reader has been closed.
var ErrClosed = errors.New("kafka consumer closed")

// Reader is the subset of *kafka.Reader used by Consumer.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProbeFunc verifies that the subscription target is reachable.
type ProbeFunc func(ctx context.Context) error

// Message is a single record fetched from the subscribed topic.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time

	raw kafka.Message
}

// Consumer reads messages from one Kafka topic as a member of a consumer
// group.
type Consumer struct {
	reader      Reader
	probe       ProbeFunc
	topic       string
	group       string
	pollTimeout time.Duration
	logger      *slog.Logger
}

// NewConsumer creates a Consumer for cfg.Topic. No network I/O happens until
// Subscribe or Poll is called.
func NewConsumer(cfg config.KafkaConfig) *Consumer {
	startOffset := kafka.FirstOffset
	if cfg.StartOffset == config.OffsetLatest {
		startOffset = kafka.LastOffset
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.PollTimeout,
		StartOffset: startOffset,
	})
	brokers := append([]string(nil), cfg.Brokers...)
	return NewConsumerWithReader(r, cfg, func(ctx context.Context) error {
		return probeTopic(ctx, brokers, cfg.Topic)
	})
}

// NewConsumerWithReader creates a Consumer around an existing reader. A nil
// probe makes Subscribe always succeed.
func NewConsumerWithReader(reader Reader, cfg config.KafkaConfig, probe ProbeFunc) *Consumer {
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = time.Second
	}
	return &Consumer{
		reader:      reader,
		probe:       probe,
		topic:       cfg.Topic,
		group:       cfg.ConsumerGroup,
		pollTimeout: pollTimeout,
		logger:      slog.Default().With("component", "kafka-consumer", "topic", cfg.Topic),
	}
}

// Topic returns the subscribed topic name.
func (c *Consumer) Topic() string {
	return c.topic
}

// Subscribe checks that a broker is reachable and the topic exists.
func (c *Consumer) Subscribe(ctx context.Context) error {
	if c.probe != nil {
		if err := c.probe(ctx); err != nil {
			return fmt.Errorf("subscribing to topic %s: %w", c.topic, err)
		}
	}
	c.logger.Info("subscribed", "group", c.group)
	return nil
}

// Poll waits at most the configured poll timeout for the next message. It
// returns (nil, nil) when nothing arrived in time, ctx.Err() when ctx is done
// and ErrClosed when the reader has been closed.
func (c *Consumer) Poll(ctx context.Context) (*Message, error) {
	pollCtx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()

	msg, err := c.reader.FetchMessage(pollCtx)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			return nil, nil
		case errors.Is(err, io.EOF):
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("fetching message: %w", err)
	}
	c.logger.Debug("message received",
		"partition", msg.Partition,
		"offset", msg.Offset,
		"key", string(msg.Key),
		"value_size", len(msg.Value),
	)
	return &Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
		Time:      msg.Time,
		raw:       msg,
	}, nil
}

// Commit marks msg as processed for the consumer group.
func (c *Consumer) Commit(ctx context.Context, msg *Message) error {
	if err := c.reader.CommitMessages(ctx, msg.raw); err != nil {
		return fmt.Errorf("committing offset %d on partition %d: %w", msg.Offset, msg.Partition, err)
	}
	return nil
}

// Close releases the subscription.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// probeTopic dials each broker in turn and returns nil as soon as one of them
// reports at least one partition for topic.
func probeTopic(ctx context.Context, brokers []string, topic string) error {
	if len(brokers) == 0 {
		return errors.New("no brokers configured")
	}
	var lastErr error
	for _, broker := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = fmt.Errorf("dialing %s: %w", broker, err)
			continue
		}
		partitions, err := conn.ReadPartitions(topic)
		conn.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading partitions from %s: %w", broker, err)
			continue
		}
		if len(partitions) == 0 {
			lastErr = fmt.Errorf("topic %s has no partitions", topic)
			continue
		}
		return nil
	}
	return lastErr
}
