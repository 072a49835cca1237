package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mintex/exchange-core/backend/internal/entities"
)

// MailboxWriter hands normalized order messages to the matching engine over
// a single topic. Messages for one order are keyed by its id so they land
// on one partition in order.
type MailboxWriter struct {
	logger *slog.Logger
	writer *kafka.Writer
}

func NewMailboxWriter(logger *slog.Logger, brokers []string, topic string) *MailboxWriter {
	return &MailboxWriter{
		logger: logger,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			Async:                  false,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

func (w *MailboxWriter) Enqueue(ctx context.Context, msg entities.MailboxMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling mailbox message: %w", err)
	}

	err = w.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(msg.ID, 10)),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("writing mailbox message for order %d: %w", msg.ID, err)
	}

	w.logger.Debug("order handed to matching mailbox", "order_id", msg.ID, "market", msg.Market)
	return nil
}

func (w *MailboxWriter) Close() error {
	return w.writer.Close()
}
