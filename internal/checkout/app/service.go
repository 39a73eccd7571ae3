package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dwikikusuma/shoping-market/internal/apperr"
	"github.com/dwikikusuma/shoping-market/internal/checkout/domain"
	"github.com/dwikikusuma/shoping-market/internal/payment"
	"github.com/dwikikusuma/shoping-market/pkg/idempotency"
	"github.com/dwikikusuma/shoping-market/pkg/metrics"
)

const (
	scopeInitiate = "checkout.initiate"
	scopePayment  = "checkout.payment"
	scopeComplete = "checkout.complete"

	cancelClaimTTL = time.Minute
)

// completion is the claim a Complete call holds on a session while it places
// the order. OrderID is set once the order exists.
type completion struct {
	OrderID string `json:"order_id,omitempty"`
}

type Deps struct {
	Sessions    SessionRepo
	Cart        CartReader
	Catalog     CatalogReader
	Orders      OrderPlacer
	Gateway     payment.Gateway
	Idempotency idempotency.Store
	Metrics     *metrics.Checkout
	Log         *slog.Logger
}

type Config struct {
	SessionTTL    time.Duration
	MaxConcurrent int
}

type Service struct {
	Deps

	ttl           time.Duration
	maxConcurrent int
	now           func() time.Time
}

func NewService(deps Deps, cfg Config) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 15 * time.Minute
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	return &Service{
		Deps:          deps,
		ttl:           cfg.SessionTTL,
		maxConcurrent: cfg.MaxConcurrent,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source; tests use it to expire sessions.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Initiate locks the current prices of the selected cart items into a new
// session. Retrying with the same idempotency key while that session is
// alive returns it unchanged.
func (s *Service) Initiate(ctx context.Context, customerID string, itemIDs []string, idempotencyKey string) (domain.Session, error) {
	if strings.TrimSpace(customerID) == "" {
		return domain.Session{}, apperr.Invalid("customer id is required")
	}
	ids := dedupe(itemIDs)
	if len(ids) == 0 {
		return domain.Session{}, apperr.Invalid("select at least one cart item")
	}
	idempotencyKey = strings.TrimSpace(idempotencyKey)

	if idempotencyKey != "" {
		if sess, ok := s.replayInitiate(ctx, customerID, idempotencyKey); ok {
			s.Metrics.Session("replayed")
			return sess, nil
		}
	}

	items, err := s.Cart.SelectedItems(ctx, customerID, ids)
	if err != nil {
		return domain.Session{}, fmt.Errorf("load cart items: %w", err)
	}
	if missing := missingIDs(ids, items); len(missing) > 0 {
		return domain.Session{}, apperr.NotFound("cart items", strings.Join(missing, ","))
	}

	prices, err := s.fetchPrices(ctx, items)
	if err != nil {
		return domain.Session{}, err
	}

	locked := make([]domain.LockedPrice, len(items))
	for i, it := range items {
		locked[i] = domain.LockedPrice{
			CartItemID:  it.ID,
			ProductID:   it.ProductID,
			VariantID:   it.VariantID,
			ProductName: prices[i].ProductName,
			VariantName: prices[i].VariantName,
			SellerID:    prices[i].SellerID,
			UnitPrice:   prices[i].UnitPrice,
			Quantity:    it.Quantity,
		}
	}

	now := s.now()
	sess := domain.Session{
		ID:           uuid.NewString(),
		CustomerID:   customerID,
		CartItemIDs:  ids,
		LockedPrices: locked,
		TotalAmount:  domain.Total(locked),
		Step:         domain.StepCart,
		InitiateKey:  idempotencyKey,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}
	if err := sess.Advance(domain.StepShipping); err != nil {
		return domain.Session{}, err
	}
	if err := s.Sessions.Create(ctx, sess); err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}

	if idempotencyKey != "" {
		existing, stored, err := s.Idempotency.PutIfAbsent(ctx, scopeInitiate, initiateKey(customerID, idempotencyKey), []byte(sess.ID), s.ttl)
		if err != nil {
			return domain.Session{}, fmt.Errorf("store idempotency key: %w", err)
		}
		if !stored {
			winner, err := s.Sessions.Get(ctx, string(existing))
			if err == nil && s.usable(winner) == nil {
				// a concurrent retry won; drop ours and hand back theirs
				_ = s.abandon(ctx, sess)
				s.Metrics.Session("replayed")
				return winner, nil
			}
			// the key points at a dead session; it now belongs to this one
			if err := s.Idempotency.Put(ctx, scopeInitiate, initiateKey(customerID, idempotencyKey), []byte(sess.ID), s.ttl); err != nil {
				return domain.Session{}, fmt.Errorf("store idempotency key: %w", err)
			}
		}
	}

	s.Metrics.Session("initiated")
	s.Log.Info("checkout initiated",
		slog.String("session_id", sess.ID),
		slog.String("customer_id", customerID),
		slog.Int("lines", len(locked)),
		slog.String("total", sess.TotalAmount.StringFixed(2)))
	return sess, nil
}

func (s *Service) replayInitiate(ctx context.Context, customerID, key string) (domain.Session, bool) {
	raw, err := s.Idempotency.Get(ctx, scopeInitiate, initiateKey(customerID, key))
	if err != nil {
		if !errors.Is(err, idempotency.ErrNotFound) {
			s.Log.Warn("idempotency lookup failed", slog.Any("err", err))
		}
		return domain.Session{}, false
	}
	sess, err := s.Sessions.Get(ctx, string(raw))
	if err != nil || s.usable(sess) != nil {
		return domain.Session{}, false
	}
	return sess, true
}

// fetchPrices quotes every item concurrently, bounded by maxConcurrent.
func (s *Service) fetchPrices(ctx context.Context, items []CartItem) ([]Price, error) {
	prices := make([]Price, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for idx := range items {
		idx := idx
		g.Go(func() error {
			it := items[idx]
			p, err := s.Catalog.Price(gctx, it.ProductID, it.VariantID)
			if err != nil {
				return fmt.Errorf("price product %s: %w", it.ProductID, err)
			}
			prices[idx] = p
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return prices, nil
}

func (s *Service) Get(ctx context.Context, sessionID, customerID string) (domain.Session, error) {
	return s.load(ctx, sessionID, customerID)
}

func (s *Service) SetShippingInfo(ctx context.Context, sessionID, customerID string, info domain.ShippingInfo) (domain.Session, error) {
	sess, err := s.open(ctx, sessionID, customerID)
	if err != nil {
		return domain.Session{}, err
	}
	if sess.Step != domain.StepShipping && sess.Step != domain.StepPayment {
		return domain.Session{}, apperr.InvalidState("shipping info cannot be set at step %s", sess.Step)
	}

	normalized, err := info.Normalize()
	if err != nil {
		return domain.Session{}, err
	}
	sess.ShippingInfo = &normalized
	if err := s.Sessions.Save(ctx, sess); err != nil {
		return domain.Session{}, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// ValidateAndProceedToPayment re-prices every line. Drifted prices are
// reported, not applied; a line without enough stock stops the checkout.
func (s *Service) ValidateAndProceedToPayment(ctx context.Context, sessionID, customerID string) ([]domain.PriceChange, domain.Session, error) {
	sess, err := s.open(ctx, sessionID, customerID)
	if err != nil {
		return nil, domain.Session{}, err
	}
	if sess.Step != domain.StepShipping && sess.Step != domain.StepPayment {
		return nil, domain.Session{}, apperr.InvalidState("cannot validate at step %s", sess.Step)
	}
	if sess.ShippingInfo == nil {
		return nil, domain.Session{}, apperr.Invalid("shipping info is required before payment")
	}

	items := make([]CartItem, len(sess.LockedPrices))
	for i, l := range sess.LockedPrices {
		items[i] = CartItem{ID: l.CartItemID, ProductID: l.ProductID, VariantID: l.VariantID, Quantity: l.Quantity}
	}
	live, err := s.fetchPrices(ctx, items)
	if err != nil {
		return nil, domain.Session{}, err
	}

	changes := []domain.PriceChange{}
	for i, l := range sess.LockedPrices {
		if live[i].Stock >= 0 && live[i].Stock < l.Quantity {
			return nil, domain.Session{}, &apperr.StockError{
				ProductID: l.ProductID, ProductName: l.ProductName,
				VariantID: l.VariantID, VariantName: l.VariantName,
				Requested: l.Quantity, Available: live[i].Stock,
			}
		}
		if !live[i].UnitPrice.Equal(l.UnitPrice) {
			changes = append(changes, domain.PriceChange{
				CartItemID:  l.CartItemID,
				ProductID:   l.ProductID,
				VariantID:   l.VariantID,
				ProductName: l.ProductName,
				OldPrice:    l.UnitPrice,
				NewPrice:    live[i].UnitPrice,
			})
		}
	}

	if sess.Step == domain.StepShipping {
		if err := sess.Advance(domain.StepPayment); err != nil {
			return nil, domain.Session{}, err
		}
		if err := s.Sessions.Save(ctx, sess); err != nil {
			return nil, domain.Session{}, fmt.Errorf("save session: %w", err)
		}
	}

	if len(changes) > 0 {
		s.Log.Info("checkout prices drifted",
			slog.String("session_id", sess.ID), slog.Int("changes", len(changes)))
	}
	return changes, sess, nil
}

// ProcessPayment charges the locked total. Each idempotency key is charged
// at most once; repeating a key replays the stored outcome.
func (s *Service) ProcessPayment(ctx context.Context, sessionID, customerID, method, idempotencyKey string) (domain.PaymentAttempt, error) {
	m, err := payment.ParseMethod(method)
	if err != nil {
		return domain.PaymentAttempt{}, err
	}
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey == "" {
		return domain.PaymentAttempt{}, apperr.Invalid("idempotency key is required")
	}

	sess, err := s.open(ctx, sessionID, customerID)
	if err != nil {
		return domain.PaymentAttempt{}, err
	}
	if sess.Step != domain.StepPayment {
		return domain.PaymentAttempt{}, apperr.InvalidState("payment is not allowed at step %s", sess.Step)
	}

	key := sess.ID + ":" + idempotencyKey
	if sess.PaymentID != "" && sess.PaymentKey != idempotencyKey {
		return domain.PaymentAttempt{}, apperr.InvalidState("session %s is already paid", sess.ID)
	}

	attempt := domain.PaymentAttempt{
		SessionID:      sess.ID,
		IdempotencyKey: idempotencyKey,
		Method:         string(m),
		Amount:         sess.TotalAmount,
		Pending:        true,
		CreatedAt:      s.now(),
	}
	pending, err := json.Marshal(attempt)
	if err != nil {
		return domain.PaymentAttempt{}, err
	}
	ttl := sess.ExpiresAt.Sub(s.now())
	existing, stored, err := s.Idempotency.PutIfAbsent(ctx, scopePayment, key, pending, ttl)
	if err != nil {
		return domain.PaymentAttempt{}, fmt.Errorf("store payment attempt: %w", err)
	}
	if !stored {
		var prev domain.PaymentAttempt
		if err := json.Unmarshal(existing, &prev); err != nil {
			return domain.PaymentAttempt{}, fmt.Errorf("decode payment attempt: %w", err)
		}
		if prev.Pending {
			return domain.PaymentAttempt{}, fmt.Errorf("%w: payment with this key is in progress", apperr.ErrConflict)
		}
		s.Metrics.Payment(prev.Method, "replayed")
		if prev.Success && sess.PaymentID == "" {
			// the first call charged but could not record it on the session
			sess.PaymentID = prev.Reference
			sess.PaymentMethod = prev.Method
			sess.PaymentKey = idempotencyKey
			if err := s.Sessions.Save(context.WithoutCancel(ctx), sess); err != nil {
				return prev, fmt.Errorf("save session: %w", err)
			}
		}
		return prev, prev.Err()
	}

	res := s.Gateway.Process(ctx, payment.Request{
		SessionID:      sess.ID,
		CustomerID:     sess.CustomerID,
		Method:         m,
		Amount:         sess.TotalAmount,
		Currency:       "PHP",
		IdempotencyKey: key,
	})

	attempt.Pending = false
	attempt.Success = res.Success
	attempt.Reference = res.Reference
	attempt.ErrorCode = res.Code
	attempt.ErrorMessage = res.Message
	final, err := json.Marshal(attempt)
	if err != nil {
		return domain.PaymentAttempt{}, err
	}
	// Keep the outcome even if the request context is gone.
	if err := s.Idempotency.Put(context.WithoutCancel(ctx), scopePayment, key, final, ttl); err != nil {
		s.Log.Error("store payment result failed", slog.String("session_id", sess.ID), slog.Any("err", err))
	}

	if !res.Success {
		s.Metrics.Payment(string(m), res.Code)
		s.Log.Warn("payment failed",
			slog.String("session_id", sess.ID),
			slog.String("method", string(m)),
			slog.String("code", res.Code))
		return attempt, res.Err()
	}

	s.Metrics.Payment(string(m), "success")
	sess.PaymentID = res.Reference
	sess.PaymentMethod = string(m)
	sess.PaymentKey = idempotencyKey
	if err := s.Sessions.Save(context.WithoutCancel(ctx), sess); err != nil {
		return attempt, fmt.Errorf("save session: %w", err)
	}
	return attempt, nil
}

// Complete places the order at the locked prices. Completing a completed
// session returns the same order id.
func (s *Service) Complete(ctx context.Context, sessionID, customerID, paymentIDOverride string) (string, error) {
	sess, err := s.load(ctx, sessionID, customerID)
	if err != nil {
		return "", err
	}
	if sess.Completed() {
		return sess.OrderID, nil
	}
	if err := s.usable(sess); err != nil {
		return "", err
	}
	if sess.Step != domain.StepPayment {
		return "", apperr.InvalidState("cannot complete at step %s", sess.Step)
	}

	paymentID := strings.TrimSpace(paymentIDOverride)
	if paymentID == "" {
		paymentID = sess.PaymentID
	}
	if paymentID == "" {
		return "", apperr.Invalid("payment id is required")
	}
	method := sess.PaymentMethod
	if method == "" {
		method = methodFromReference(paymentID)
	}

	// Only one caller may place the order for a session.
	ttl := sess.ExpiresAt.Sub(s.now())
	claim, _ := json.Marshal(completion{})
	existing, stored, err := s.Idempotency.PutIfAbsent(ctx, scopeComplete, sess.ID, claim, ttl)
	if err != nil {
		return "", fmt.Errorf("claim session: %w", err)
	}
	if !stored {
		var prev completion
		if err := json.Unmarshal(existing, &prev); err != nil {
			return "", fmt.Errorf("decode completion: %w", err)
		}
		if prev.OrderID != "" {
			return prev.OrderID, nil
		}
		return "", fmt.Errorf("%w: session %s is being completed", apperr.ErrConflict, sess.ID)
	}

	orderID, err := s.Orders.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID:    sess.CustomerID,
		CartItemIDs:   sess.CartItemIDs,
		Lines:         sess.LockedPrices,
		TotalAmount:   sess.TotalAmount,
		PaymentID:     paymentID,
		PaymentMethod: method,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrInsufficientStock) {
			s.Metrics.Order("out_of_stock")
		} else {
			s.Metrics.Order("failed")
		}
		s.Log.Warn("order placement failed", slog.String("session_id", sess.ID), slog.Any("err", err))
		if derr := s.Idempotency.Delete(context.WithoutCancel(ctx), scopeComplete, sess.ID); derr != nil {
			s.Log.Error("release completion claim failed", slog.String("session_id", sess.ID), slog.Any("err", derr))
		}
		return "", err
	}

	done, _ := json.Marshal(completion{OrderID: orderID})
	if err := s.Idempotency.Put(context.WithoutCancel(ctx), scopeComplete, sess.ID, done, ttl); err != nil {
		s.Log.Error("store completion failed",
			slog.String("session_id", sess.ID), slog.String("order_id", orderID), slog.Any("err", err))
	}

	sess.PaymentID = paymentID
	sess.OrderID = orderID
	if err := sess.Advance(domain.StepConfirmation); err != nil {
		return "", err
	}
	if err := s.Sessions.Save(context.WithoutCancel(ctx), sess); err != nil {
		s.Log.Error("save completed session failed",
			slog.String("session_id", sess.ID), slog.String("order_id", orderID), slog.Any("err", err))
	}

	s.Metrics.Order("created")
	s.Metrics.Session("completed")
	s.Log.Info("checkout completed", slog.String("session_id", sess.ID), slog.String("order_id", orderID))
	return orderID, nil
}

// Cancel abandons the session. Cancelling twice, or cancelling a completed
// session, is a no-op. A payment already taken for the session is refunded.
func (s *Service) Cancel(ctx context.Context, sessionID, customerID string) error {
	sess, err := s.load(ctx, sessionID, customerID)
	if err != nil {
		return err
	}
	if sess.Cancelled() || sess.Completed() {
		return nil
	}

	// Take the completion claim so no Complete can place an order for a
	// payment that is about to be refunded.
	claim, _ := json.Marshal(completion{})
	existing, stored, err := s.Idempotency.PutIfAbsent(ctx, scopeComplete, sess.ID, claim, cancelClaimTTL)
	if err != nil {
		return fmt.Errorf("claim session: %w", err)
	}
	if !stored {
		var prev completion
		if err := json.Unmarshal(existing, &prev); err == nil && prev.OrderID != "" {
			return nil
		}
		return fmt.Errorf("%w: session %s is being completed", apperr.ErrConflict, sess.ID)
	}

	if err := s.abandon(ctx, sess); err != nil {
		if derr := s.Idempotency.Delete(context.WithoutCancel(ctx), scopeComplete, sess.ID); derr != nil {
			s.Log.Error("release completion claim failed", slog.String("session_id", sess.ID), slog.Any("err", derr))
		}
		return err
	}
	if sess.PaymentID != "" {
		s.refund(ctx, sess)
	}
	return nil
}

func (s *Service) refund(ctx context.Context, sess domain.Session) {
	res := s.Gateway.Refund(context.WithoutCancel(ctx), sess.PaymentID, sess.TotalAmount)
	if !res.Success {
		s.Log.Error("refund of cancelled checkout failed",
			slog.String("session_id", sess.ID),
			slog.String("payment_id", sess.PaymentID),
			slog.String("code", res.Code))
		return
	}
	s.Log.Info("cancelled checkout refunded",
		slog.String("session_id", sess.ID),
		slog.String("payment_id", sess.PaymentID),
		slog.String("refund_id", res.Reference))
}

// PurgeExpired drops expired sessions and idempotency records.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	now := s.now()
	n, err := s.Sessions.Purge(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	if _, err := s.Idempotency.DeleteExpired(ctx, now); err != nil {
		return n, fmt.Errorf("purge idempotency keys: %w", err)
	}
	return n, nil
}

func (s *Service) abandon(ctx context.Context, sess domain.Session) error {
	now := s.now()
	sess.CancelledAt = &now
	if err := s.Sessions.Save(ctx, sess); err != nil {
		s.Log.Warn("cancel session failed", slog.String("session_id", sess.ID), slog.Any("err", err))
		return fmt.Errorf("cancel session: %w", err)
	}
	s.Metrics.Session("cancelled")
	return nil
}

func (s *Service) load(ctx context.Context, sessionID, customerID string) (domain.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return domain.Session{}, apperr.Invalid("session id is required")
	}
	sess, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if customerID != "" && sess.CustomerID != customerID {
		return domain.Session{}, apperr.Forbidden("session %s belongs to another customer", sessionID)
	}
	return sess, nil
}

// open loads a session that may still be acted on.
func (s *Service) open(ctx context.Context, sessionID, customerID string) (domain.Session, error) {
	sess, err := s.load(ctx, sessionID, customerID)
	if err != nil {
		return domain.Session{}, err
	}
	return sess, s.usable(sess)
}

func (s *Service) usable(sess domain.Session) error {
	switch {
	case sess.Cancelled():
		return apperr.InvalidState("session %s was cancelled", sess.ID)
	case sess.Completed():
		return apperr.InvalidState("session %s is already completed", sess.ID)
	case sess.Expired(s.now()):
		return fmt.Errorf("%w: session %s expired at %s", apperr.ErrSessionExpired, sess.ID, sess.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

func initiateKey(customerID, key string) string {
	return customerID + ":" + key
}

func methodFromReference(ref string) string {
	if i := strings.LastIndex(ref, "_"); i > 0 {
		if m, err := payment.ParseMethod(ref[:i]); err == nil {
			return string(m)
		}
	}
	return ""
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func missingIDs(want []string, got []CartItem) []string {
	have := make(map[string]bool, len(got))
	for _, it := range got {
		have[it.ID] = true
	}
	var missing []string
	for _, id := range want {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
