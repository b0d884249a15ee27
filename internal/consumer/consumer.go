package consumer

import (
	"bookstore-service/internal/entity"
	"context"
	"encoding/json"
	"errors"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"io"
	"strings"
	"time"
)

// MessageReader is satisfied by *kafka.Reader.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// OrderHandler reacts to committed orders.
type OrderHandler interface {
	OrderPlaced(ctx context.Context, event *entity.OrderPlacedEvent) error
}

// DefaultRetryDelay is the pause after a failed read.
const DefaultRetryDelay = time.Second

type Consumer struct {
	reader     MessageReader
	handler    OrderHandler
	retryDelay time.Duration
}

func NewConsumer(reader MessageReader, handler OrderHandler) *Consumer {
	return &Consumer{reader: reader, handler: handler, retryDelay: DefaultRetryDelay}
}

// Run reads order events until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			log.Error().Msgf("Error reading message, retrying in %s: %v", c.retryDelay, err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryDelay):
			}
			continue
		}

		c.processMessage(ctx, msg)
	}
}

// processMessage logs and skips messages it cannot handle.
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) {
	// key -> "order.placed.<orderID>"
	key := string(msg.Key)
	if !strings.HasPrefix(key, entity.EventOrderPlaced+".") {
		log.Warn().Msgf("Skipping message with unknown key %q", key)
		return
	}

	var event entity.OrderPlacedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		log.Error().Msgf("Error unmarshalling message %q: %v", key, err)
		return
	}
	if event.Type != entity.EventOrderPlaced {
		log.Warn().Msgf("Skipping event of type %q", event.Type)
		return
	}

	if err := c.handler.OrderPlaced(ctx, &event); err != nil {
		log.Error().Msgf("Error handling order %d event: %v", event.OrderID, err)
	}
}
