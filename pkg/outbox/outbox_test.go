package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwikikusuma/shoping-market/pkg/logger"
)

type fakePublisher struct {
	keys     []string
	payloads [][]byte
	failAt   int
}

func (p *fakePublisher) Publish(_ context.Context, key string, payload []byte) error {
	if p.failAt > 0 && len(p.keys)+1 == p.failAt {
		return errors.New("broker unavailable")
	}
	p.keys = append(p.keys, key)
	p.payloads = append(p.payloads, payload)
	return nil
}

func TestRelayFlushesInOrderAndMarksSent(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Append("order.created", "o-1", map[string]string{"order_id": "o-1"}))
	require.NoError(t, store.Append("order.shipped", "o-1", map[string]string{"order_id": "o-1"}))

	pub := &fakePublisher{}
	relay := NewRelay(store, pub, logger.Nop(), 0)

	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var env Envelope
	require.NoError(t, json.Unmarshal(pub.payloads[0], &env))
	assert.Equal(t, "order.created", env.Type)

	pending, _ := store.FetchPending(context.Background(), 10)
	assert.Empty(t, pending)
}

func TestRelayStopsAtFailureAndRetriesLater(t *testing.T) {
	store := NewMemoryStore()
	_ = store.Append("a", "k", 1)
	_ = store.Append("b", "k", 2)

	pub := &fakePublisher{failAt: 2}
	relay := NewRelay(store, pub, logger.Nop(), 0)

	n, err := relay.Flush(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, n)

	pub.failAt = 0
	n, err = relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
