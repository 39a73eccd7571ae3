package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
	StatusRefunded   Status = "REFUNDED"
)

// LineSnapshot is the immutable copy of a purchased line, serialized onto
// the order row at creation time.
type LineSnapshot struct {
	CartItemID  string          `json:"cart_item_id,omitempty"`
	ProductID   string          `json:"product_id"`
	VariantID   string          `json:"variant_id,omitempty"`
	ProductName string          `json:"product_name"`
	VariantName string          `json:"variant_name,omitempty"`
	SellerID    string          `json:"seller_id"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
}

func (l LineSnapshot) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// AnonymizedLines replaces the line snapshot of orders whose customer
// deleted their account.
var AnonymizedLines = []LineSnapshot{{ProductName: "[deleted]"}}

type Order struct {
	ID         string
	CustomerID string
	// SellerID is set when every line belongs to one seller.
	SellerID       *string
	Lines          []LineSnapshot
	TotalAmount    decimal.Decimal
	Discount       decimal.Decimal
	Status         Status
	TrackingNumber string
	Courier        string
	PaymentID      string
	PaymentMethod  string
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Items []Item
}

// HasSeller reports whether sellerID owns the order or any of its items.
func (o Order) HasSeller(sellerID string) bool {
	if sellerID == "" {
		return false
	}
	if o.SellerID != nil && *o.SellerID == sellerID {
		return true
	}
	for _, it := range o.Items {
		if it.SellerID == sellerID {
			return true
		}
	}
	return false
}

func (o *Order) Item(itemID string) *Item {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i]
		}
	}
	return nil
}

type Item struct {
	ID               string
	OrderID          string
	SellerID         string
	ProductID        string
	VariantID        string
	ProductName      string
	VariantName      string
	Quantity         int
	UnitPrice        decimal.Decimal
	Status           ItemStatus
	TrackingNumber   string
	ShippingProvider string
	ShippedAt        *time.Time
	DeliveredAt      *time.Time
}

func (it Item) Total() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// NewOrder builds an order and its paid items from the purchased lines.
func NewOrder(customerID, paymentID, paymentMethod string, lines []LineSnapshot) Order {
	o := Order{
		CustomerID:    customerID,
		Lines:         lines,
		TotalAmount:   decimal.Zero,
		Discount:      decimal.Zero,
		Status:        StatusPending,
		PaymentID:     paymentID,
		PaymentMethod: paymentMethod,
	}
	if paymentID != "" {
		o.Status = StatusConfirmed
	}

	sellers := map[string]bool{}
	for _, l := range lines {
		o.TotalAmount = o.TotalAmount.Add(l.Total())
		sellers[l.SellerID] = true
		o.Items = append(o.Items, Item{
			SellerID:    l.SellerID,
			ProductID:   l.ProductID,
			VariantID:   l.VariantID,
			ProductName: l.ProductName,
			VariantName: l.VariantName,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Status:      ItemPaid,
		})
	}
	if len(sellers) == 1 && len(lines) > 0 {
		s := lines[0].SellerID
		if s != "" {
			o.SellerID = &s
		}
	}
	return o
}

// SellerMetrics are the seller's delivered-sales aggregates.
type SellerMetrics struct {
	SellerID    string
	TotalSales  decimal.Decimal
	TotalOrders int
}
