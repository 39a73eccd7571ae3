package app

import (
	"context"

	"github.com/shopspring/decimal"

	cartdomain "github.com/dwikikusuma/shoping-market/internal/cart/domain"
	"github.com/dwikikusuma/shoping-market/internal/order/domain"
	"github.com/dwikikusuma/shoping-market/internal/payment"
	"github.com/dwikikusuma/shoping-market/pkg/notify"
)

type ListFilter struct {
	CustomerID string
	SellerID   string
	Limit      int
}

// Mutation changes an order loaded under lock and returns the events to
// record with it. Returning no events and no error leaves the order as is.
type Mutation func(o *domain.Order) ([]domain.Event, error)

type OrderRepo interface {
	// CreateOrderTx decrements stock for every variant line, then inserts the
	// order, its items and events, all in one transaction. A failed decrement
	// returns *apperr.StockError and nothing is written.
	CreateOrderTx(ctx context.Context, order domain.Order, events []domain.Event) (domain.Order, error)
	Get(ctx context.Context, id string) (domain.Order, error)
	OrderIDForItem(ctx context.Context, itemID string) (string, error)
	List(ctx context.Context, f ListFilter) ([]domain.Order, error)
	// Update applies m under a row lock. Items entering delivered for the
	// first time add their totals to the seller metrics in the same
	// transaction.
	Update(ctx context.Context, orderID string, m Mutation) (domain.Order, error)
	AnonymizeCustomer(ctx context.Context, customerID string) (int, error)
	SellerMetrics(ctx context.Context, sellerID string) (domain.SellerMetrics, error)
}

type Cart interface {
	ItemsForCheckout(ctx context.Context, customerID string, itemIDs []string) ([]cartdomain.CartItem, error)
	RemoveItems(ctx context.Context, customerID string, itemIDs []string) error
}

// Notifier is satisfied by *notify.Dispatcher.
type Notifier interface {
	Fire(msg notify.Message)
}

type Refunder interface {
	Refund(ctx context.Context, reference string, amount decimal.Decimal) payment.Result
}
