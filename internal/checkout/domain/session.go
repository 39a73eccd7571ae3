package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/shoping-market/internal/apperr"
)

type Step string

const (
	StepCart         Step = "cart"
	StepShipping     Step = "shipping"
	StepPayment      Step = "payment"
	StepConfirmation Step = "confirmation"
)

var stepOrder = map[Step]int{
	StepCart:         0,
	StepShipping:     1,
	StepPayment:      2,
	StepConfirmation: 3,
}

// LockedPrice is a line priced at initiation. It is what the customer is
// charged, whatever the catalog says later.
type LockedPrice struct {
	CartItemID  string          `json:"cart_item_id"`
	ProductID   string          `json:"product_id"`
	VariantID   string          `json:"variant_id,omitempty"`
	ProductName string          `json:"product_name"`
	VariantName string          `json:"variant_name,omitempty"`
	SellerID    string          `json:"seller_id"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
}

func (l LockedPrice) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type ShippingInfo struct {
	FullName      string `json:"full_name"`
	Phone         string `json:"phone"`
	StreetAddress string `json:"street_address"`
	City          string `json:"city"`
	PostalCode    string `json:"postal_code"`
	Province      string `json:"province,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// Normalize trims every field and reports the first missing required one.
func (i ShippingInfo) Normalize() (ShippingInfo, error) {
	i.FullName = strings.TrimSpace(i.FullName)
	i.Phone = strings.TrimSpace(i.Phone)
	i.StreetAddress = strings.TrimSpace(i.StreetAddress)
	i.City = strings.TrimSpace(i.City)
	i.PostalCode = strings.TrimSpace(i.PostalCode)
	i.Province = strings.TrimSpace(i.Province)
	i.Notes = strings.TrimSpace(i.Notes)

	for _, f := range []struct{ name, value string }{
		{"full name", i.FullName},
		{"phone", i.Phone},
		{"street address", i.StreetAddress},
		{"city", i.City},
		{"postal code", i.PostalCode},
	} {
		if f.value == "" {
			return i, apperr.Invalid("%s is required", f.name)
		}
	}
	return i, nil
}

// PriceChange reports a line whose live price drifted from the locked one.
type PriceChange struct {
	CartItemID  string          `json:"cart_item_id"`
	ProductID   string          `json:"product_id"`
	VariantID   string          `json:"variant_id,omitempty"`
	ProductName string          `json:"product_name"`
	OldPrice    decimal.Decimal `json:"old_price"`
	NewPrice    decimal.Decimal `json:"new_price"`
}

type Session struct {
	ID            string          `json:"id"`
	CustomerID    string          `json:"customer_id"`
	CartItemIDs   []string        `json:"cart_item_ids"`
	LockedPrices  []LockedPrice   `json:"locked_prices"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Step          Step            `json:"step"`
	ShippingInfo  *ShippingInfo   `json:"shipping_info,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	PaymentID     string          `json:"payment_id,omitempty"`
	OrderID       string          `json:"order_id,omitempty"`
	InitiateKey   string          `json:"initiate_key,omitempty"`
	PaymentKey    string          `json:"payment_key,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

func (s Session) Cancelled() bool { return s.CancelledAt != nil }

func (s Session) Completed() bool { return s.Step == StepConfirmation }

// Advance moves exactly one step forward.
func (s *Session) Advance(to Step) error {
	if stepOrder[to] != stepOrder[s.Step]+1 {
		return apperr.InvalidState("checkout cannot move from %s to %s", s.Step, to)
	}
	s.Step = to
	return nil
}

// Total sums the locked lines.
func Total(lines []LockedPrice) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal())
	}
	return total
}

// PaymentAttempt is the stored outcome of one payment idempotency key.
type PaymentAttempt struct {
	SessionID      string          `json:"session_id"`
	IdempotencyKey string          `json:"idempotency_key"`
	Method         string          `json:"method"`
	Amount         decimal.Decimal `json:"amount"`
	Pending        bool            `json:"pending,omitempty"`
	Success        bool            `json:"success"`
	Reference      string          `json:"reference,omitempty"`
	ErrorCode      string          `json:"error_code,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Err is nil for successful or pending attempts.
func (a PaymentAttempt) Err() error {
	if a.Success || a.Pending {
		return nil
	}
	return &apperr.PaymentError{Code: a.ErrorCode, Message: a.ErrorMessage}
}
