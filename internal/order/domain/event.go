package domain

import "time"

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderShipped       = "order.shipped"
	EventItemStatusChanged  = "order.item_status_changed"
	EventCustomerAnonymized = "order.customer_anonymized"
)

// Event is written to the outbox in the same transaction as the change.
type Event struct {
	Type       string    `json:"type"`
	OrderID    string    `json:"order_id"`
	ItemID     string    `json:"item_id,omitempty"`
	CustomerID string    `json:"customer_id,omitempty"`
	SellerID   string    `json:"seller_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	Tracking   string    `json:"tracking_number,omitempty"`
	Total      string    `json:"total,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
