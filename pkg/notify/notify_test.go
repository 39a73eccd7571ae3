package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwikikusuma/shoping-market/pkg/logger"
)

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
	msgs []any
	err  error
}

func (p *recordingPublisher) PublishJSON(_ context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, key)
	p.msgs = append(p.msgs, v)
	return nil
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	d := NewDispatcher(NewQueueNotifier(pub, "notifications"), logger.Nop(), 0)

	d.Fire(Message{To: "c-1", Subject: "shipped"})
	d.Wait()

	assert.Empty(t, pub.msgs)
}

func TestQueueNotifierPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewQueueNotifier(pub, "notifications")

	require.NoError(t, n.Send(context.Background(), Message{To: "c-1", Subject: "delivered"}))
	assert.Equal(t, []string{"notifications"}, pub.keys)

	assert.Error(t, n.Send(context.Background(), Message{Subject: "no recipient"}))
}

func TestNilDispatcher(t *testing.T) {
	var d *Dispatcher
	d.Fire(Message{To: "x"})
	d.Wait()
}
