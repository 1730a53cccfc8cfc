package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kavyarao/streamfilter/pkg/config"
	"github.com/segmentio/kafka-go"
)

// MessageHandler is a callback invoked for each Kafka message.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer reads messages from a Kafka topic and dispatches them to a
// MessageHandler. Offsets are committed only after the handler returns
// nil, so a crash replays unprocessed messages.
type Consumer struct {
	reader  *kafka.Reader
	handler MessageHandler
	logger  *slog.Logger
}

// NewConsumer creates a Consumer for the given topic and handler.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       topic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    1e3,
			MaxBytes:    10e6,
			MaxWait:     500 * time.Millisecond,
			StartOffset: kafka.LastOffset,
		}),
		handler: handler,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Start runs the consume loop until ctx is cancelled, then closes the
// reader. Handler errors are logged and the message is skipped without
// committing, so it is redelivered on the next rebalance.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")

	for ctx.Err() == nil {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			c.logger.Error("fetch failed", "error", err)
			continue
		}
		c.consume(ctx, msg)
	}

	c.logger.Info("consumer stopping", "reason", ctx.Err())
	return c.reader.Close()
}

func (c *Consumer) consume(ctx context.Context, msg kafka.Message) {
	if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
		c.logger.Error("handler failed",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return
	}
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("commit failed",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
	}
}

// Close closes the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON is a generic helper that unmarshals a Kafka message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
