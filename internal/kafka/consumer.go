package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, groupID, topic string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Consume reads until ctx is cancelled or handler fails.
func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, kafka.Message) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			return err
		}

		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
}

// ReservationEvents adapts a typed handler to Consume. Undecodable messages are
// logged and skipped so that one bad payload does not stall the group.
func ReservationEvents(handle func(context.Context, ReservationEvent) error) func(context.Context, kafka.Message) error {
	return func(ctx context.Context, msg kafka.Message) error {
		var event ReservationEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			slog.Warn("skip undecodable reservation event", "offset", msg.Offset, "error", err)
			return nil
		}
		return handle(ctx, event)
	}
}
