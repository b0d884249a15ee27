package consumer

import (
	"bookstore-service/internal/entity"
	"context"
	"encoding/json"
	"errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strconv"
	"sync"
	"testing"
	"time"
)

// fakeReader fails the first failures reads, replays msgs, then blocks
// until the context ends.
type fakeReader struct {
	msgs     []kafka.Message
	failures int
	reads    int
	closed   bool
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.reads++
	if r.failures > 0 {
		r.failures--
		return kafka.Message{}, errors.New("broker unreachable")
	}
	if len(r.msgs) > 0 {
		msg := r.msgs[0]
		r.msgs = r.msgs[1:]
		return msg, nil
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type recordingHandler struct {
	mu     sync.Mutex
	orders []int64
	done   chan struct{}
	want   int
}

func (h *recordingHandler) OrderPlaced(ctx context.Context, event *entity.OrderPlacedEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.orders = append(h.orders, event.OrderID)
	if len(h.orders) == h.want {
		close(h.done)
	}
	if event.OrderID == 2 {
		return errors.New("cache down")
	}
	return nil
}

func eventMessage(t *testing.T, id int64) kafka.Message {
	t.Helper()
	value, err := json.Marshal(entity.OrderPlacedEvent{Type: entity.EventOrderPlaced, OrderID: id, Items: []entity.OrderItem{{BookID: 1, Quantity: 1}}})
	require.NoError(t, err)
	return kafka.Message{Key: []byte("order.placed." + strconv.FormatInt(id, 10)), Value: value}
}

func TestConsumerHandlesOrderEvents(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		eventMessage(t, 1),
		{Key: []byte("order.placed.9"), Value: []byte("{not json")},
		{Key: []byte("order-created-5"), Value: []byte(`{}`)},
		{Key: []byte("order.placed.8"), Value: []byte(`{"type":"order.cancelled","order_id":8}`)},
		eventMessage(t, 2),
		eventMessage(t, 3),
	}}
	handler := &recordingHandler{done: make(chan struct{}), want: 3}

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- NewConsumer(reader, handler).Run(ctx) }()

	<-handler.done
	cancel()
	require.NoError(t, <-result)

	assert.Equal(t, []int64{1, 2, 3}, handler.orders, "bad messages are skipped and handler errors don't stop the loop")
	assert.True(t, reader.closed)
}

func TestConsumerWaitsAfterReadError(t *testing.T) {
	reader := &fakeReader{failures: 3, msgs: []kafka.Message{eventMessage(t, 1)}}
	handler := &recordingHandler{done: make(chan struct{}), want: 1}
	c := NewConsumer(reader, handler)
	c.retryDelay = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	start := time.Now()
	go func() { result <- c.Run(ctx) }()

	<-handler.done
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	cancel()
	require.NoError(t, <-result)
	assert.Equal(t, 5, reader.reads, "three failures, one message, one blocking read")
}

func TestConsumerStopsDuringRetryWait(t *testing.T) {
	reader := &fakeReader{failures: 1}
	c := NewConsumer(reader, &recordingHandler{done: make(chan struct{})})
	c.retryDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result := make(chan error, 1)
	go func() { result <- c.Run(ctx) }()

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop while waiting to retry")
	}
	assert.Equal(t, 1, reader.reads)
	assert.True(t, reader.closed)
}
