// Package checkoutv1 is the wire contract of the checkout service.
package checkoutv1

import (
	"context"

	"google.golang.org/grpc"

	"github.com/dwikikusuma/shoping-market/pkg/grpcjson"
)

const ServiceName = "checkout.v1.CheckoutService"

type LockedPrice struct {
	CartItemID  string `json:"cart_item_id"`
	ProductID   string `json:"product_id"`
	VariantID   string `json:"variant_id,omitempty"`
	ProductName string `json:"product_name"`
	VariantName string `json:"variant_name,omitempty"`
	SellerID    string `json:"seller_id"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	LineTotal   string `json:"line_total"`
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

type Session struct {
	ID            string        `json:"id"`
	CustomerID    string        `json:"customer_id"`
	CartItemIDs   []string      `json:"cart_item_ids"`
	LockedPrices  []LockedPrice `json:"locked_prices"`
	TotalAmount   string        `json:"total_amount"`
	Step          string        `json:"step"`
	ShippingInfo  *ShippingInfo `json:"shipping_info,omitempty"`
	PaymentMethod string        `json:"payment_method,omitempty"`
	PaymentID     string        `json:"payment_id,omitempty"`
	OrderID       string        `json:"order_id,omitempty"`
	Cancelled     bool          `json:"cancelled,omitempty"`
	CreatedAtUnix int64         `json:"created_at_unix"`
	ExpiresAtUnix int64         `json:"expires_at_unix"`
}

type InitiateRequest struct {
	CustomerID      string   `json:"customer_id"`
	SelectedItemIDs []string `json:"selected_item_ids"`
	IdempotencyKey  string   `json:"idempotency_key,omitempty"`
}

type SessionRequest struct {
	SessionID  string `json:"session_id"`
	CustomerID string `json:"customer_id"`
}

type SetShippingInfoRequest struct {
	SessionID    string       `json:"session_id"`
	CustomerID   string       `json:"customer_id"`
	ShippingInfo ShippingInfo `json:"shipping_info"`
}

type PriceChange struct {
	CartItemID  string `json:"cart_item_id"`
	ProductID   string `json:"product_id"`
	VariantID   string `json:"variant_id,omitempty"`
	ProductName string `json:"product_name"`
	OldPrice    string `json:"old_price"`
	NewPrice    string `json:"new_price"`
}

type ValidateResponse struct {
	PriceChanges []PriceChange `json:"price_changes"`
	Session      Session       `json:"session"`
}

type ProcessPaymentRequest struct {
	SessionID      string `json:"session_id"`
	CustomerID     string `json:"customer_id"`
	PaymentMethod  string `json:"payment_method"`
	IdempotencyKey string `json:"idempotency_key"`
}

type ProcessPaymentResponse struct {
	Success      bool   `json:"success"`
	PaymentID    string `json:"payment_id,omitempty"`
	Method       string `json:"method"`
	Amount       string `json:"amount"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type CompleteRequest struct {
	SessionID  string `json:"session_id"`
	CustomerID string `json:"customer_id"`
	PaymentID  string `json:"payment_id,omitempty"`
}

type CompleteResponse struct {
	OrderID string `json:"order_id"`
}

type Empty struct{}

type CheckoutServiceServer interface {
	Initiate(context.Context, *InitiateRequest) (*Session, error)
	GetSession(context.Context, *SessionRequest) (*Session, error)
	SetShippingInfo(context.Context, *SetShippingInfoRequest) (*Session, error)
	Validate(context.Context, *SessionRequest) (*ValidateResponse, error)
	ProcessPayment(context.Context, *ProcessPaymentRequest) (*ProcessPaymentResponse, error)
	Complete(context.Context, *CompleteRequest) (*CompleteResponse, error)
	Cancel(context.Context, *SessionRequest) (*Empty, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CheckoutServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		grpcjson.Unary(ServiceName, "Initiate", CheckoutServiceServer.Initiate),
		grpcjson.Unary(ServiceName, "GetSession", CheckoutServiceServer.GetSession),
		grpcjson.Unary(ServiceName, "SetShippingInfo", CheckoutServiceServer.SetShippingInfo),
		grpcjson.Unary(ServiceName, "Validate", CheckoutServiceServer.Validate),
		grpcjson.Unary(ServiceName, "ProcessPayment", CheckoutServiceServer.ProcessPayment),
		grpcjson.Unary(ServiceName, "Complete", CheckoutServiceServer.Complete),
		grpcjson.Unary(ServiceName, "Cancel", CheckoutServiceServer.Cancel),
	},
	Metadata: "api/checkout/v1/checkout.go",
}

func RegisterCheckoutServiceServer(s grpc.ServiceRegistrar, srv CheckoutServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type CheckoutServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewCheckoutServiceClient(cc grpc.ClientConnInterface) *CheckoutServiceClient {
	return &CheckoutServiceClient{cc: cc}
}

func (c *CheckoutServiceClient) Initiate(ctx context.Context, in *InitiateRequest, opts ...grpc.CallOption) (*Session, error) {
	return grpcjson.Invoke[Session](ctx, c.cc, ServiceName, "Initiate", in, opts...)
}

func (c *CheckoutServiceClient) GetSession(ctx context.Context, in *SessionRequest, opts ...grpc.CallOption) (*Session, error) {
	return grpcjson.Invoke[Session](ctx, c.cc, ServiceName, "GetSession", in, opts...)
}

func (c *CheckoutServiceClient) SetShippingInfo(ctx context.Context, in *SetShippingInfoRequest, opts ...grpc.CallOption) (*Session, error) {
	return grpcjson.Invoke[Session](ctx, c.cc, ServiceName, "SetShippingInfo", in, opts...)
}

func (c *CheckoutServiceClient) Validate(ctx context.Context, in *SessionRequest, opts ...grpc.CallOption) (*ValidateResponse, error) {
	return grpcjson.Invoke[ValidateResponse](ctx, c.cc, ServiceName, "Validate", in, opts...)
}

func (c *CheckoutServiceClient) ProcessPayment(ctx context.Context, in *ProcessPaymentRequest, opts ...grpc.CallOption) (*ProcessPaymentResponse, error) {
	return grpcjson.Invoke[ProcessPaymentResponse](ctx, c.cc, ServiceName, "ProcessPayment", in, opts...)
}

func (c *CheckoutServiceClient) Complete(ctx context.Context, in *CompleteRequest, opts ...grpc.CallOption) (*CompleteResponse, error) {
	return grpcjson.Invoke[CompleteResponse](ctx, c.cc, ServiceName, "Complete", in, opts...)
}

func (c *CheckoutServiceClient) Cancel(ctx context.Context, in *SessionRequest, opts ...grpc.CallOption) (*Empty, error) {
	return grpcjson.Invoke[Empty](ctx, c.cc, ServiceName, "Cancel", in, opts...)
}
