// Package client drives a checkout from the buyer's side. The server holds
// the session; the local mirror only helps resume after a restart and is
// re-checked against the server before it is trusted.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"

	checkoutv1 "github.com/dwikikusuma/shoping-market/api/checkout/v1"
	"github.com/dwikikusuma/shoping-market/internal/apperr"
)

// ErrNoSession is returned by step calls made without an active session.
var ErrNoSession = errors.New("no active checkout session")

// API is the subset of the checkout gRPC client used here.
type API interface {
	Initiate(ctx context.Context, in *checkoutv1.InitiateRequest, opts ...grpc.CallOption) (*checkoutv1.Session, error)
	GetSession(ctx context.Context, in *checkoutv1.SessionRequest, opts ...grpc.CallOption) (*checkoutv1.Session, error)
	SetShippingInfo(ctx context.Context, in *checkoutv1.SetShippingInfoRequest, opts ...grpc.CallOption) (*checkoutv1.Session, error)
	Validate(ctx context.Context, in *checkoutv1.SessionRequest, opts ...grpc.CallOption) (*checkoutv1.ValidateResponse, error)
	ProcessPayment(ctx context.Context, in *checkoutv1.ProcessPaymentRequest, opts ...grpc.CallOption) (*checkoutv1.ProcessPaymentResponse, error)
	Complete(ctx context.Context, in *checkoutv1.CompleteRequest, opts ...grpc.CallOption) (*checkoutv1.CompleteResponse, error)
	Cancel(ctx context.Context, in *checkoutv1.SessionRequest, opts ...grpc.CallOption) (*checkoutv1.Empty, error)
}

var _ API = (*checkoutv1.CheckoutServiceClient)(nil)

// Mirror is what gets written to local storage.
type Mirror struct {
	Session     checkoutv1.Session `json:"session"`
	InitiateKey string             `json:"initiate_key"`
	PaymentKey  string             `json:"payment_key,omitempty"`
	SavedAt     time.Time          `json:"saved_at"`
}

func (m Mirror) expired(now time.Time) bool {
	return !now.Before(time.Unix(m.Session.ExpiresAtUnix, 0))
}

type Client struct {
	api        API
	store      Store
	customerID string
	log        *slog.Logger
	now        func() time.Time
	newKey     func() string

	current *Mirror
}

func New(api API, store Store, customerID string, log *slog.Logger) *Client {
	return &Client{
		api:        api,
		store:      store,
		customerID: customerID,
		log:        log,
		now:        time.Now,
		newKey:     uuid.NewString,
	}
}

// Session returns the active session, if any.
func (c *Client) Session() (checkoutv1.Session, bool) {
	if c.current == nil {
		return checkoutv1.Session{}, false
	}
	return c.current.Session, true
}

// Initiate starts a checkout. A retry for the same selection reuses the
// stored idempotency key so the server hands back the same session.
func (c *Client) Initiate(ctx context.Context, itemIDs []string) (checkoutv1.Session, error) {
	key := c.newKey()
	if m, ok := c.loadMirror(); ok && !m.expired(c.now()) && sameItems(m.Session.CartItemIDs, itemIDs) {
		key = m.InitiateKey
	}

	sess, err := c.api.Initiate(ctx, &checkoutv1.InitiateRequest{
		CustomerID:      c.customerID,
		SelectedItemIDs: itemIDs,
		IdempotencyKey:  key,
	})
	if err != nil {
		return checkoutv1.Session{}, apperr.FromStatus(err)
	}

	c.remember(&Mirror{Session: *sess, InitiateKey: key})
	return *sess, nil
}

// Resume restores a mirrored session when it is unexpired locally and the
// server still considers it open. Anything else clears the mirror.
func (c *Client) Resume(ctx context.Context) (checkoutv1.Session, bool, error) {
	m, ok := c.loadMirror()
	if !ok {
		return checkoutv1.Session{}, false, nil
	}
	if m.expired(c.now()) {
		c.discard()
		return checkoutv1.Session{}, false, nil
	}

	sess, err := c.api.GetSession(ctx, &checkoutv1.SessionRequest{SessionID: m.Session.ID, CustomerID: c.customerID})
	if err != nil {
		err = apperr.FromStatus(err)
		if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrForbidden) {
			c.discard()
			return checkoutv1.Session{}, false, nil
		}
		return checkoutv1.Session{}, false, err
	}
	if sess.Cancelled || sess.Step == "confirmation" || !c.now().Before(time.Unix(sess.ExpiresAtUnix, 0)) {
		c.discard()
		return checkoutv1.Session{}, false, nil
	}

	m.Session = *sess
	c.remember(&m)
	return *sess, true, nil
}

func (c *Client) SetShipping(ctx context.Context, info checkoutv1.ShippingInfo) (checkoutv1.Session, error) {
	m, err := c.active()
	if err != nil {
		return checkoutv1.Session{}, err
	}
	sess, err := c.api.SetShippingInfo(ctx, &checkoutv1.SetShippingInfoRequest{
		SessionID:    m.Session.ID,
		CustomerID:   c.customerID,
		ShippingInfo: info,
	})
	if err != nil {
		return checkoutv1.Session{}, apperr.FromStatus(err)
	}
	m.Session = *sess
	c.remember(m)
	return *sess, nil
}

// Validate moves to the payment step and returns the lines whose live
// price no longer matches the locked one.
func (c *Client) Validate(ctx context.Context) ([]checkoutv1.PriceChange, error) {
	m, err := c.active()
	if err != nil {
		return nil, err
	}
	resp, err := c.api.Validate(ctx, &checkoutv1.SessionRequest{SessionID: m.Session.ID, CustomerID: c.customerID})
	if err != nil {
		return nil, apperr.FromStatus(err)
	}
	m.Session = resp.Session
	c.remember(m)
	return resp.PriceChanges, nil
}

// Pay submits the payment. The key of an attempt whose outcome is unknown
// is kept so a retry cannot charge twice; a declined attempt frees it.
func (c *Client) Pay(ctx context.Context, method string) (string, error) {
	m, err := c.active()
	if err != nil {
		return "", err
	}
	if m.PaymentKey == "" {
		m.PaymentKey = c.newKey()
		c.remember(m)
	}

	resp, err := c.api.ProcessPayment(ctx, &checkoutv1.ProcessPaymentRequest{
		SessionID:      m.Session.ID,
		CustomerID:     c.customerID,
		PaymentMethod:  method,
		IdempotencyKey: m.PaymentKey,
	})
	if err != nil {
		err = apperr.FromStatus(err)
		if errors.Is(err, apperr.ErrPaymentFailed) || errors.Is(err, apperr.ErrInvalidArgument) {
			m.PaymentKey = ""
			c.remember(m)
		}
		return "", err
	}

	m.Session.PaymentID = resp.PaymentID
	m.Session.PaymentMethod = resp.Method
	c.remember(m)
	return resp.PaymentID, nil
}

// Complete places the order. The mirror is dropped once the order exists.
func (c *Client) Complete(ctx context.Context, paymentIDOverride string) (string, error) {
	m, err := c.active()
	if err != nil {
		return "", err
	}
	resp, err := c.api.Complete(ctx, &checkoutv1.CompleteRequest{
		SessionID:  m.Session.ID,
		CustomerID: c.customerID,
		PaymentID:  paymentIDOverride,
	})
	if err != nil {
		return "", apperr.FromStatus(err)
	}
	c.discard()
	return resp.OrderID, nil
}

// Cancel abandons the checkout. Local state is dropped even when the
// server cannot be reached.
func (c *Client) Cancel(ctx context.Context) error {
	m, ok := c.loadMirror()
	if !ok {
		return nil
	}
	c.discard()

	_, err := c.api.Cancel(ctx, &checkoutv1.SessionRequest{SessionID: m.Session.ID, CustomerID: c.customerID})
	if err != nil {
		return fmt.Errorf("cancel session %s: %w", m.Session.ID, apperr.FromStatus(err))
	}
	return nil
}

func (c *Client) active() (*Mirror, error) {
	m, ok := c.loadMirror()
	if !ok {
		return nil, ErrNoSession
	}
	if m.expired(c.now()) {
		c.discard()
		return nil, fmt.Errorf("%w: session %s", apperr.ErrSessionExpired, m.Session.ID)
	}
	return &m, nil
}

func (c *Client) loadMirror() (Mirror, bool) {
	if c.current != nil {
		return *c.current, true
	}
	data, ok, err := c.store.Load()
	if err != nil {
		c.log.Warn("load checkout mirror failed", slog.Any("err", err))
		return Mirror{}, false
	}
	if !ok {
		return Mirror{}, false
	}
	var m Mirror
	if err := json.Unmarshal(data, &m); err != nil {
		c.log.Warn("corrupt checkout mirror dropped", slog.Any("err", err))
		c.discard()
		return Mirror{}, false
	}
	c.current = &m
	return m, true
}

func (c *Client) remember(m *Mirror) {
	m.SavedAt = c.now()
	c.current = m
	data, err := json.Marshal(m)
	if err != nil {
		c.log.Warn("encode checkout mirror failed", slog.Any("err", err))
		return
	}
	if err := c.store.Save(data); err != nil {
		c.log.Warn("save checkout mirror failed", slog.Any("err", err))
	}
}

func (c *Client) discard() {
	c.current = nil
	if err := c.store.Delete(); err != nil {
		c.log.Warn("delete checkout mirror failed", slog.Any("err", err))
	}
}

func sameItems(a, b []string) bool {
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}
