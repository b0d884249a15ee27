// Package publisher delivers order events after the placement transaction
// has committed.
package publisher

import (
	"bookstore-service/internal/entity"
	"context"
	"encoding/json"
	"fmt"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Kafka struct {
	writer MessageWriter
}

func NewKafka(writer MessageWriter) *Kafka {
	return &Kafka{writer: writer}
}

// MessageKey is "order.placed.<order_id>".
func MessageKey(event *entity.OrderPlacedEvent) string {
	return fmt.Sprintf("%s.%d", event.Type, event.OrderID)
}

func (k *Kafka) PublishOrderPlaced(ctx context.Context, event *entity.OrderPlacedEvent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(MessageKey(event)),
		Value: eventJSON,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write order %d event: %w", event.OrderID, err)
	}
	return nil
}

// HandlerFunc processes an event in process.
type HandlerFunc func(ctx context.Context, event *entity.OrderPlacedEvent) error

// Local hands events straight to handlers, used when Kafka is disabled.
type Local struct {
	handlers []HandlerFunc
}

func NewLocal(handlers ...HandlerFunc) *Local {
	return &Local{handlers: handlers}
}

func (l *Local) PublishOrderPlaced(ctx context.Context, event *entity.OrderPlacedEvent) error {
	for _, h := range l.handlers {
		if err := h(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
