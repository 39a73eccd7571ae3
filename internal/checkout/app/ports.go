package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/shoping-market/internal/checkout/domain"
)

type SessionRepo interface {
	Create(ctx context.Context, s domain.Session) error
	// Get returns apperr.ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (domain.Session, error)
	Save(ctx context.Context, s domain.Session) error
	// Purge deletes sessions that expired before the given time.
	Purge(ctx context.Context, before time.Time) (int, error)
}

type CartItem struct {
	ID        string
	ProductID string
	VariantID string
	Quantity  int
}

type CartReader interface {
	// SelectedItems returns the customer's items among ids; ids the
	// customer does not own are left out.
	SelectedItems(ctx context.Context, customerID string, ids []string) ([]CartItem, error)
}

type Price struct {
	ProductName string
	VariantName string
	SellerID    string
	UnitPrice   decimal.Decimal
	// Stock is -1 when the line is not stock tracked.
	Stock int
}

type CatalogReader interface {
	Price(ctx context.Context, productID, variantID string) (Price, error)
}

type PlaceOrderRequest struct {
	CustomerID    string
	CartItemIDs   []string
	Lines         []domain.LockedPrice
	TotalAmount   decimal.Decimal
	PaymentID     string
	PaymentMethod string
}

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (orderID string, err error)
}
