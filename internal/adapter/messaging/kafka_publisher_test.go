package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	calls    int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaPublisher_WritesKeyedJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, zap.NewNop())

	err := p.Publish(context.Background(), "order.submitted", "ORD-1", map[string]string{"order_id": "ORD-1"})
	require.NoError(t, err)

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "ORD-1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, eventTypeHeader, msg.Headers[0].Key)
	assert.Equal(t, "order.submitted", string(msg.Headers[0].Value))

	var body map[string]string
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "ORD-1", body["order_id"])
}

func TestKafkaPublisher_UnencodablePayload(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, zap.NewNop())

	err := p.Publish(context.Background(), "order.submitted", "k", make(chan int))
	require.Error(t, err)
	assert.Zero(t, w.calls)
}

func TestKafkaPublisher_BreakerOpensAfterFailures(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newKafkaPublisher(w, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.Error(t, p.Publish(ctx, "order.submitted", "k", "v"))
	}
	assert.Equal(t, 5, w.calls)

	err := p.Publish(ctx, "order.submitted", "k", "v")
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 5, w.calls)
}

func TestNoopPublisher(t *testing.T) {
	var p NoopPublisher
	assert.NoError(t, p.Publish(context.Background(), "t", "k", nil))
	assert.NoError(t, p.Close())
}
