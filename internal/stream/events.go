// Package stream holds the Kafka producers behind the two outbound
// channels: the market event bus and the matching-engine mailbox. Both are
// at-least-once; consumers must tolerate duplicates.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// EventWriter publishes market events. The topic varies per message
// (market.<id>.<event>), so the writer is not bound to one.
type EventWriter struct {
	logger *slog.Logger
	writer *kafka.Writer
}

func NewEventWriter(logger *slog.Logger, brokers []string) *EventWriter {
	return &EventWriter{
		logger: logger,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			Async:                  false,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

func (w *EventWriter) Publish(ctx context.Context, topic string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling event payload: %w", err)
	}

	err = w.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("writing event to %s: %w", topic, err)
	}

	w.logger.Debug("event published", "topic", topic)
	return nil
}

func (w *EventWriter) Close() error {
	return w.writer.Close()
}
