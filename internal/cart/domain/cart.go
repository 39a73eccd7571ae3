package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is one (product, variant) line. VariantID is empty for products
// sold without variants.
type CartItem struct {
	ID        string
	CartID    string
	ProductID string
	VariantID string
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time

	// Resolved from the catalog on read; never persisted.
	ProductName string
	VariantName string
	SellerID    string
	UnitPrice   decimal.Decimal
	Stock       int
}

type Cart struct {
	ID         string
	CustomerID string
	Items      []CartItem
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Subtotal sums resolved unit prices.
func (c Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}
