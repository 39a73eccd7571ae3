package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwikikusuma/shoping-market/pkg/notify"
)

type stubNotifier struct {
	sent []notify.Message
	err  error
}

func (s *stubNotifier) Send(_ context.Context, msg notify.Message) error {
	s.sent = append(s.sent, msg)
	return s.err
}

func TestHandle(t *testing.T) {
	ctx := context.Background()

	n := &stubNotifier{}
	require.NoError(t, handle(ctx, n, []byte(`{"to":"cust-1","subject":"Order placed","body":"..."}`)))
	require.Len(t, n.sent, 1)
	assert.Equal(t, "Order placed", n.sent[0].Subject)

	assert.NoError(t, handle(ctx, n, []byte("not json")), "malformed messages are dropped")
	assert.NoError(t, handle(ctx, n, []byte(`{"subject":"no recipient"}`)))
	assert.Len(t, n.sent, 1)

	failing := &stubNotifier{err: errors.New("smtp down")}
	assert.Error(t, handle(ctx, failing, []byte(`{"to":"cust-1","subject":"x"}`)), "delivery failures requeue")
}
