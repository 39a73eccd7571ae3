package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/shoping-market/internal/apperr"
	"github.com/dwikikusuma/shoping-market/internal/order/domain"
	"github.com/dwikikusuma/shoping-market/internal/payment"
	"github.com/dwikikusuma/shoping-market/pkg/notify"
)

type Service struct {
	repo     OrderRepo
	cart     Cart
	notifier Notifier
	refunder Refunder
	log      *slog.Logger
	now      func() time.Time
}

func NewService(repo OrderRepo, cart Cart, notifier Notifier, refunder Refunder, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		cart:     cart,
		notifier: notifier,
		refunder: refunder,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type CreateOrderInput struct {
	CustomerID    string
	CartItemIDs   []string
	Lines         []domain.LineSnapshot
	TotalAmount   decimal.Decimal
	PaymentID     string
	PaymentMethod string
}

// CreateOrder turns locked checkout lines into an order. Stock for every
// variant line is decremented atomically with the insert; only the
// checked-out cart items are removed afterwards.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	if strings.TrimSpace(in.CustomerID) == "" {
		return domain.Order{}, apperr.Invalid("customer id is required")
	}
	if len(in.CartItemIDs) == 0 {
		return domain.Order{}, apperr.Invalid("no cart items selected")
	}

	cartItems, err := s.cart.ItemsForCheckout(ctx, in.CustomerID, in.CartItemIDs)
	if err != nil {
		return domain.Order{}, fmt.Errorf("resolve cart items: %w", err)
	}
	if len(cartItems) == 0 {
		return domain.Order{}, apperr.Invalid("none of the selected cart items exist")
	}
	inCart := make(map[string]bool, len(cartItems))
	for _, it := range cartItems {
		inCart[it.ID] = true
	}

	lines := make([]domain.LineSnapshot, 0, len(in.Lines))
	purchased := make([]string, 0, len(in.Lines))
	for i, l := range in.Lines {
		if !inCart[l.CartItemID] {
			return domain.Order{}, apperr.InvalidState("%s is no longer in the cart (item %s)", lineLabel(l), l.CartItemID)
		}
		if l.Quantity <= 0 {
			return domain.Order{}, apperr.Invalid("line %d: quantity must be positive, got %d", i, l.Quantity)
		}
		if l.UnitPrice.IsNegative() {
			return domain.Order{}, apperr.Invalid("line %d: unit price cannot be negative", i)
		}
		lines = append(lines, l)
		purchased = append(purchased, l.CartItemID)
	}
	if len(lines) == 0 {
		return domain.Order{}, apperr.Invalid("no locked line matches the selected cart items")
	}

	order := domain.NewOrder(in.CustomerID, in.PaymentID, in.PaymentMethod, lines)
	// The caller charged the locked total; an order for any other amount
	// would not match the payment.
	if !in.TotalAmount.IsZero() && !in.TotalAmount.Equal(order.TotalAmount) {
		return domain.Order{}, apperr.InvalidState("locked total %s does not match line total %s",
			in.TotalAmount.StringFixed(2), order.TotalAmount.StringFixed(2))
	}

	now := s.now()
	order.ID = uuid.NewString()
	order.CreatedAt, order.UpdatedAt = now, now
	for i := range order.Items {
		order.Items[i].ID = uuid.NewString()
		order.Items[i].OrderID = order.ID
	}

	created, err := s.repo.CreateOrderTx(ctx, order, []domain.Event{{
		Type:       domain.EventOrderCreated,
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Status:     string(order.Status),
		Total:      order.TotalAmount.StringFixed(2),
		OccurredAt: now,
	}})
	if err != nil {
		return domain.Order{}, err
	}

	if err := s.cart.RemoveItems(ctx, in.CustomerID, purchased); err != nil {
		s.log.Warn("remove checked-out cart items failed",
			slog.String("order_id", created.ID), slog.Any("err", err))
	}

	s.notify(created.CustomerID, "Order placed",
		fmt.Sprintf("Your order %s for %s has been placed.", created.ID, created.TotalAmount.StringFixed(2)),
		created.ID)

	s.log.Info("order created",
		slog.String("order_id", created.ID),
		slog.String("customer_id", created.CustomerID),
		slog.Int("lines", len(created.Items)))
	return created, nil
}

func (s *Service) GetOrder(ctx context.Context, actor domain.Actor, id string) (domain.Order, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Order{}, apperr.Invalid("order id is required")
	}
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !domain.CanViewOrder(actor, o) {
		return domain.Order{}, apperr.Forbidden("order %s is not visible to user %s", id, actor.UserID)
	}
	return o, nil
}

// ListOrders returns the caller's orders: own orders for customers, orders
// with their items for sellers, everything for admins.
func (s *Service) ListOrders(ctx context.Context, actor domain.Actor, limit int) ([]domain.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	f := ListFilter{Limit: limit}
	switch {
	case actor.IsAdmin():
	case actor.Role == domain.RoleSeller:
		if actor.SellerID == "" {
			return nil, apperr.Forbidden("seller id missing")
		}
		f.SellerID = actor.SellerID
	default:
		if actor.UserID == "" {
			return nil, apperr.Invalid("user id is required")
		}
		f.CustomerID = actor.UserID
	}
	return s.repo.List(ctx, f)
}

type ItemStatusUpdate struct {
	ItemID           string
	Status           string
	TrackingNumber   string
	ShippingProvider string
}

// UpdateItemStatus moves one item forward. Re-applying the current status
// is a no-op, so delivering twice counts the sale once.
func (s *Service) UpdateItemStatus(ctx context.Context, actor domain.Actor, in ItemStatusUpdate) (domain.Item, error) {
	next, err := domain.ParseItemStatus(in.Status)
	if err != nil {
		return domain.Item{}, err
	}
	orderID, err := s.repo.OrderIDForItem(ctx, in.ItemID)
	if err != nil {
		return domain.Item{}, err
	}

	changed := false
	updated, err := s.repo.Update(ctx, orderID, func(o *domain.Order) ([]domain.Event, error) {
		it := o.Item(in.ItemID)
		if it == nil {
			return nil, apperr.NotFound("order item", in.ItemID)
		}
		if !domain.CanActOnItem(actor, *it) {
			return nil, apperr.Forbidden("user %s cannot update item %s", actor.UserID, it.ID)
		}
		if o.Status == domain.StatusCancelled || o.Status == domain.StatusRefunded {
			return nil, apperr.InvalidState("order %s is %s", o.ID, o.Status)
		}
		if err := it.Status.CheckItemTransition(next); err != nil {
			return nil, err
		}
		if it.Status == next {
			return nil, nil
		}

		now := s.now()
		if in.TrackingNumber != "" {
			it.TrackingNumber = in.TrackingNumber
		}
		if in.ShippingProvider != "" {
			it.ShippingProvider = in.ShippingProvider
		}
		switch next {
		case domain.ItemShipped:
			it.ShippedAt = &now
		case domain.ItemDelivered:
			if it.ShippedAt == nil {
				it.ShippedAt = &now
			}
			it.DeliveredAt = &now
		}
		it.Status = next
		o.UpdatedAt = now
		changed = true

		return []domain.Event{{
			Type:       domain.EventItemStatusChanged,
			OrderID:    o.ID,
			ItemID:     it.ID,
			CustomerID: o.CustomerID,
			SellerID:   it.SellerID,
			Status:     string(next),
			Tracking:   it.TrackingNumber,
			OccurredAt: now,
		}}, nil
	})
	if err != nil {
		return domain.Item{}, err
	}

	it := updated.Item(in.ItemID)
	if it == nil {
		return domain.Item{}, apperr.NotFound("order item", in.ItemID)
	}
	if changed {
		switch next {
		case domain.ItemShipped:
			s.notify(updated.CustomerID, "Your item has shipped",
				fmt.Sprintf("%s from order %s is on its way. Tracking: %s", it.ProductName, updated.ID, it.TrackingNumber),
				updated.ID)
		case domain.ItemDelivered:
			s.notify(updated.CustomerID, "Your item was delivered",
				fmt.Sprintf("%s from order %s has been delivered.", it.ProductName, updated.ID),
				updated.ID)
		}
	}
	return *it, nil
}

// ShipOrder marks the whole order shipped and cascades the tracking data to
// every item not yet shipped.
func (s *Service) ShipOrder(ctx context.Context, actor domain.Actor, orderID, trackingNumber, courier string) (domain.Order, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return domain.Order{}, apperr.Invalid("tracking number is required")
	}
	courier = strings.TrimSpace(courier)

	shipped, err := s.repo.Update(ctx, orderID, func(o *domain.Order) ([]domain.Event, error) {
		if !domain.CanActOnOrder(actor, *o) {
			return nil, apperr.Forbidden("user %s cannot ship order %s", actor.UserID, o.ID)
		}
		if err := o.Status.CheckTransition(domain.StatusShipped); err != nil {
			return nil, err
		}

		now := s.now()
		o.Status = domain.StatusShipped
		o.TrackingNumber = trackingNumber
		o.Courier = courier
		o.ShippedAt = &now
		o.UpdatedAt = now
		for i := range o.Items {
			it := &o.Items[i]
			if it.Status == domain.ItemDelivered {
				continue
			}
			it.Status = domain.ItemShipped
			it.TrackingNumber = trackingNumber
			it.ShippingProvider = courier
			it.ShippedAt = &now
		}

		return []domain.Event{{
			Type:       domain.EventOrderShipped,
			OrderID:    o.ID,
			CustomerID: o.CustomerID,
			Status:     string(o.Status),
			Tracking:   trackingNumber,
			OccurredAt: now,
		}}, nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.notify(shipped.CustomerID, "Your order has shipped",
		fmt.Sprintf("Order %s shipped via %s. Tracking: %s", shipped.ID, courier, trackingNumber),
		shipped.ID)
	return shipped, nil
}

// TransitionOrder applies any other allowed order status change. Customers
// may cancel their own orders; everything else needs fulfilment rights.
func (s *Service) TransitionOrder(ctx context.Context, actor domain.Actor, orderID, status string) (domain.Order, error) {
	next, err := domain.ParseStatus(status)
	if err != nil {
		return domain.Order{}, err
	}
	if next == domain.StatusShipped {
		return domain.Order{}, apperr.Invalid("shipping needs a tracking number, use the ship endpoint")
	}

	var prev domain.Status
	updated, err := s.repo.Update(ctx, orderID, func(o *domain.Order) ([]domain.Event, error) {
		ownCancel := next == domain.StatusCancelled && actor.UserID != "" && o.CustomerID == actor.UserID
		if !domain.CanActOnOrder(actor, *o) && !ownCancel {
			return nil, apperr.Forbidden("user %s cannot change order %s", actor.UserID, o.ID)
		}
		if err := o.Status.CheckTransition(next); err != nil {
			return nil, err
		}

		now := s.now()
		prev = o.Status
		o.Status = next
		o.UpdatedAt = now
		if next == domain.StatusDelivered {
			o.DeliveredAt = &now
			for i := range o.Items {
				it := &o.Items[i]
				if it.Status != domain.ItemDelivered {
					it.Status = domain.ItemDelivered
					it.DeliveredAt = &now
				}
			}
		}

		return []domain.Event{{
			Type:       domain.EventOrderStatusChanged,
			OrderID:    o.ID,
			CustomerID: o.CustomerID,
			Status:     string(next),
			OccurredAt: now,
		}}, nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	switch next {
	case domain.StatusCancelled, domain.StatusRefunded:
		s.refund(ctx, updated)
		s.notify(updated.CustomerID, "Order "+strings.ToLower(string(next)),
			fmt.Sprintf("Order %s is now %s.", updated.ID, next), updated.ID)
	case domain.StatusDelivered:
		s.notify(updated.CustomerID, "Your order was delivered",
			fmt.Sprintf("Order %s has been delivered.", updated.ID), updated.ID)
	}

	s.log.Info("order status changed",
		slog.String("order_id", updated.ID),
		slog.String("from", string(prev)),
		slog.String("to", string(next)))
	return updated, nil
}

// AnonymizeCustomer scrubs the line snapshots of a deleted account's orders.
// The rows stay for accounting.
func (s *Service) AnonymizeCustomer(ctx context.Context, customerID string) (int, error) {
	if strings.TrimSpace(customerID) == "" {
		return 0, apperr.Invalid("customer id is required")
	}
	n, err := s.repo.AnonymizeCustomer(ctx, customerID)
	if err != nil {
		return 0, fmt.Errorf("anonymize orders: %w", err)
	}
	s.log.Info("customer orders anonymized", slog.String("customer_id", customerID), slog.Int("orders", n))
	return n, nil
}

func (s *Service) SellerMetrics(ctx context.Context, actor domain.Actor, sellerID string) (domain.SellerMetrics, error) {
	if !actor.IsAdmin() && actor.SellerID != sellerID {
		return domain.SellerMetrics{}, apperr.Forbidden("metrics of seller %s", sellerID)
	}
	return s.repo.SellerMetrics(ctx, sellerID)
}

func (s *Service) refund(ctx context.Context, o domain.Order) {
	if s.refunder == nil || o.PaymentID == "" || o.PaymentMethod == string(payment.MethodCOD) {
		return
	}
	res := s.refunder.Refund(ctx, o.PaymentID, o.TotalAmount)
	if !res.Success {
		s.log.Error("refund failed",
			slog.String("order_id", o.ID),
			slog.String("payment_id", o.PaymentID),
			slog.String("code", res.Code))
		return
	}
	s.log.Info("refund issued", slog.String("order_id", o.ID), slog.String("reference", res.Reference))
}

func (s *Service) notify(to, subject, body, orderID string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Fire(notify.Message{
		To:      to,
		Subject: subject,
		Body:    body,
		Meta:    map[string]string{"order_id": orderID},
	})
}

func lineLabel(l domain.LineSnapshot) string {
	if l.VariantName != "" {
		return l.ProductName + " (" + l.VariantName + ")"
	}
	return l.ProductName
}
