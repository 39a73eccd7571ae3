package client

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	checkoutv1 "github.com/dwikikusuma/shoping-market/api/checkout/v1"
	"github.com/dwikikusuma/shoping-market/internal/apperr"
	"github.com/dwikikusuma/shoping-market/pkg/logger"
)

// fakeAPI is a tiny checkout server: one session per idempotency key.
type fakeAPI struct {
	now       func() time.Time
	sessions  map[string]*checkoutv1.Session
	byKey     map[string]string
	payKeys   []string
	declineNx int
	cancelErr error
	cancelled []string
}

func newFakeAPI(now func() time.Time) *fakeAPI {
	return &fakeAPI{now: now, sessions: map[string]*checkoutv1.Session{}, byKey: map[string]string{}}
}

func (f *fakeAPI) Initiate(_ context.Context, in *checkoutv1.InitiateRequest, _ ...grpc.CallOption) (*checkoutv1.Session, error) {
	if id, ok := f.byKey[in.IdempotencyKey]; ok {
		s := *f.sessions[id]
		return &s, nil
	}
	id := fmt.Sprintf("sess-%d", len(f.sessions)+1)
	f.sessions[id] = &checkoutv1.Session{
		ID:            id,
		CustomerID:    in.CustomerID,
		CartItemIDs:   in.SelectedItemIDs,
		Step:          "shipping",
		TotalAmount:   "100.00",
		ExpiresAtUnix: f.now().Add(15 * time.Minute).Unix(),
	}
	f.byKey[in.IdempotencyKey] = id
	s := *f.sessions[id]
	return &s, nil
}

func (f *fakeAPI) get(id string) (*checkoutv1.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, apperr.ToStatus(apperr.NotFound("checkout session", id))
	}
	return s, nil
}

func (f *fakeAPI) GetSession(_ context.Context, in *checkoutv1.SessionRequest, _ ...grpc.CallOption) (*checkoutv1.Session, error) {
	s, err := f.get(in.SessionID)
	if err != nil {
		return nil, err
	}
	out := *s
	return &out, nil
}

func (f *fakeAPI) SetShippingInfo(_ context.Context, in *checkoutv1.SetShippingInfoRequest, _ ...grpc.CallOption) (*checkoutv1.Session, error) {
	s, err := f.get(in.SessionID)
	if err != nil {
		return nil, err
	}
	info := in.ShippingInfo
	s.ShippingInfo = &info
	out := *s
	return &out, nil
}

func (f *fakeAPI) Validate(_ context.Context, in *checkoutv1.SessionRequest, _ ...grpc.CallOption) (*checkoutv1.ValidateResponse, error) {
	s, err := f.get(in.SessionID)
	if err != nil {
		return nil, err
	}
	s.Step = "payment"
	return &checkoutv1.ValidateResponse{
		PriceChanges: []checkoutv1.PriceChange{{CartItemID: "ci-1", OldPrice: "100.00", NewPrice: "120.00"}},
		Session:      *s,
	}, nil
}

func (f *fakeAPI) ProcessPayment(_ context.Context, in *checkoutv1.ProcessPaymentRequest, _ ...grpc.CallOption) (*checkoutv1.ProcessPaymentResponse, error) {
	f.payKeys = append(f.payKeys, in.IdempotencyKey)
	if f.declineNx > 0 {
		f.declineNx--
		return nil, apperr.ToStatus(&apperr.PaymentError{Code: "CARD_DECLINED", Message: "declined"})
	}
	s, err := f.get(in.SessionID)
	if err != nil {
		return nil, err
	}
	s.PaymentID = in.PaymentMethod + "_ok"
	return &checkoutv1.ProcessPaymentResponse{Success: true, PaymentID: s.PaymentID, Method: in.PaymentMethod}, nil
}

func (f *fakeAPI) Complete(_ context.Context, in *checkoutv1.CompleteRequest, _ ...grpc.CallOption) (*checkoutv1.CompleteResponse, error) {
	s, err := f.get(in.SessionID)
	if err != nil {
		return nil, err
	}
	s.Step = "confirmation"
	s.OrderID = "order-1"
	return &checkoutv1.CompleteResponse{OrderID: s.OrderID}, nil
}

func (f *fakeAPI) Cancel(_ context.Context, in *checkoutv1.SessionRequest, _ ...grpc.CallOption) (*checkoutv1.Empty, error) {
	f.cancelled = append(f.cancelled, in.SessionID)
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	if s, ok := f.sessions[in.SessionID]; ok {
		s.Cancelled = true
	}
	return &checkoutv1.Empty{}, nil
}

type harness struct {
	now   time.Time
	api   *fakeAPI
	store *MemoryStore
}

func newHarness() *harness {
	h := &harness{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), store: NewMemoryStore()}
	h.api = newFakeAPI(func() time.Time { return h.now })
	return h
}

// client builds a fresh Client over the shared store, as a restarted app would.
func (h *harness) client() *Client {
	c := New(h.api, h.store, "cust-1", logger.Nop())
	c.now = func() time.Time { return h.now }
	return c
}

func TestInitiateMirrorsSession(t *testing.T) {
	h := newHarness()
	c := h.client()

	sess, err := c.Initiate(context.Background(), []string{"ci-1"})
	require.NoError(t, err)

	_, ok, _ := h.store.Load()
	assert.True(t, ok)

	got, ok := c.Session()
	require.True(t, ok)
	assert.Equal(t, sess.ID, got.ID)
}

func TestInitiateRetryReusesKey(t *testing.T) {
	h := newHarness()

	first, err := h.client().Initiate(context.Background(), []string{"ci-1", "ci-2"})
	require.NoError(t, err)

	// restarted client, same selection in a different order
	second, err := h.client().Initiate(context.Background(), []string{"ci-2", "ci-1"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	third, err := h.client().Initiate(context.Background(), []string{"ci-3"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestResume(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing stored", func(t *testing.T) {
		h := newHarness()
		_, ok, err := h.client().Resume(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("fresh and known to server", func(t *testing.T) {
		h := newHarness()
		sess, err := h.client().Initiate(ctx, []string{"ci-1"})
		require.NoError(t, err)

		got, ok, err := h.client().Resume(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, sess.ID, got.ID)
	})

	t.Run("locally expired", func(t *testing.T) {
		h := newHarness()
		_, err := h.client().Initiate(ctx, []string{"ci-1"})
		require.NoError(t, err)

		h.now = h.now.Add(16 * time.Minute)
		_, ok, err := h.client().Resume(ctx)
		require.NoError(t, err)
		assert.False(t, ok)

		_, stored, _ := h.store.Load()
		assert.False(t, stored)
	})

	t.Run("server forgot it", func(t *testing.T) {
		h := newHarness()
		sess, err := h.client().Initiate(ctx, []string{"ci-1"})
		require.NoError(t, err)
		delete(h.api.sessions, sess.ID)

		_, ok, err := h.client().Resume(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("cancelled elsewhere", func(t *testing.T) {
		h := newHarness()
		sess, err := h.client().Initiate(ctx, []string{"ci-1"})
		require.NoError(t, err)
		h.api.sessions[sess.ID].Cancelled = true

		_, ok, err := h.client().Resume(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("corrupt mirror", func(t *testing.T) {
		h := newHarness()
		require.NoError(t, h.store.Save([]byte("{not json")))

		_, ok, err := h.client().Resume(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestFullFlowDropsMirrorOnComplete(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	c := h.client()

	_, err := c.Initiate(ctx, []string{"ci-1"})
	require.NoError(t, err)
	_, err = c.SetShipping(ctx, checkoutv1.ShippingInfo{FullName: "Ana", Phone: "1", StreetAddress: "x", City: "y", PostalCode: "1000"})
	require.NoError(t, err)

	changes, err := c.Validate(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "120.00", changes[0].NewPrice)

	paymentID, err := c.Pay(ctx, "GCASH")
	require.NoError(t, err)
	assert.Equal(t, "GCASH_ok", paymentID)

	orderID, err := c.Complete(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "order-1", orderID)

	_, stored, _ := h.store.Load()
	assert.False(t, stored)
	_, err = c.Pay(ctx, "GCASH")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestPayKeyHandling(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	c := h.client()
	_, err := c.Initiate(ctx, []string{"ci-1"})
	require.NoError(t, err)

	h.api.declineNx = 1
	_, err = c.Pay(ctx, "CARD")
	var payErr *apperr.PaymentError
	require.ErrorAs(t, err, &payErr)
	assert.Equal(t, "CARD_DECLINED", payErr.Code)

	_, err = c.Pay(ctx, "CARD")
	require.NoError(t, err)

	require.Len(t, h.api.payKeys, 2)
	assert.NotEqual(t, h.api.payKeys[0], h.api.payKeys[1], "a declined key is not reused")
}

func TestStepsNeedUnexpiredSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	c := h.client()
	_, err := c.Initiate(ctx, []string{"ci-1"})
	require.NoError(t, err)

	h.now = h.now.Add(time.Hour)
	_, err = c.Validate(ctx)
	assert.ErrorIs(t, err, apperr.ErrSessionExpired)
}

func TestCancelAlwaysDropsLocalState(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	c := h.client()
	sess, err := c.Initiate(ctx, []string{"ci-1"})
	require.NoError(t, err)

	h.api.cancelErr = errors.New("connection refused")
	err = c.Cancel(ctx)
	require.Error(t, err)

	_, stored, _ := h.store.Load()
	assert.False(t, stored)
	_, ok := c.Session()
	assert.False(t, ok)
	assert.Equal(t, []string{sess.ID}, h.api.cancelled)

	assert.NoError(t, c.Cancel(ctx), "nothing left to cancel")
}

func TestFileStore(t *testing.T) {
	s := NewFileStore(t.TempDir())

	_, ok, err := s.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save([]byte(`{"a":1}`)))
	data, ok, err := s.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(data))

	require.NoError(t, s.Delete())
	require.NoError(t, s.Delete())
	_, ok, err = s.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}
