// Package orderv1 is the wire contract of the order service.
package orderv1

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/dwikikusuma/shoping-market/pkg/grpcjson"
)

const ServiceName = "order.v1.OrderService"

// Actor identifies the caller; the gateway fills it from auth headers.
type Actor struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	SellerID string `json:"seller_id,omitempty"`
}

type LineItem struct {
	CartItemID  string `json:"cart_item_id,omitempty"`
	ProductID   string `json:"product_id"`
	VariantID   string `json:"variant_id,omitempty"`
	ProductName string `json:"product_name"`
	VariantName string `json:"variant_name,omitempty"`
	SellerID    string `json:"seller_id"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
}

type OrderItem struct {
	ID               string     `json:"id"`
	SellerID         string     `json:"seller_id"`
	ProductID        string     `json:"product_id"`
	VariantID        string     `json:"variant_id,omitempty"`
	ProductName      string     `json:"product_name"`
	VariantName      string     `json:"variant_name,omitempty"`
	Quantity         int        `json:"quantity"`
	UnitPrice        string     `json:"unit_price"`
	Status           string     `json:"status"`
	TrackingNumber   string     `json:"tracking_number,omitempty"`
	ShippingProvider string     `json:"shipping_provider,omitempty"`
	ShippedAt        *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt      *time.Time `json:"delivered_at,omitempty"`
}

type Order struct {
	ID             string      `json:"id"`
	CustomerID     string      `json:"customer_id"`
	SellerID       string      `json:"seller_id,omitempty"`
	Lines          []LineItem  `json:"lines"`
	TotalAmount    string      `json:"total_amount"`
	Discount       string      `json:"discount"`
	Status         string      `json:"status"`
	TrackingNumber string      `json:"tracking_number,omitempty"`
	Courier        string      `json:"courier,omitempty"`
	PaymentID      string      `json:"payment_id,omitempty"`
	PaymentMethod  string      `json:"payment_method,omitempty"`
	ShippedAt      *time.Time  `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time  `json:"delivered_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	Items          []OrderItem `json:"items"`
}

type CreateOrderRequest struct {
	CustomerID    string     `json:"customer_id"`
	CartItemIDs   []string   `json:"cart_item_ids"`
	Lines         []LineItem `json:"lines"`
	TotalAmount   string     `json:"total_amount"`
	PaymentID     string     `json:"payment_id"`
	PaymentMethod string     `json:"payment_method"`
}

type GetOrderRequest struct {
	Actor   Actor  `json:"actor"`
	OrderID string `json:"order_id"`
}

type ListOrdersRequest struct {
	Actor Actor `json:"actor"`
	Limit int   `json:"limit,omitempty"`
}

type ListOrdersResponse struct {
	Orders []Order `json:"orders"`
}

type UpdateItemStatusRequest struct {
	Actor            Actor  `json:"actor"`
	ItemID           string `json:"item_id"`
	Status           string `json:"status"`
	TrackingNumber   string `json:"tracking_number,omitempty"`
	ShippingProvider string `json:"shipping_provider,omitempty"`
}

type ShipOrderRequest struct {
	Actor          Actor  `json:"actor"`
	OrderID        string `json:"order_id"`
	TrackingNumber string `json:"tracking_number"`
	Courier        string `json:"courier_name"`
}

type TransitionOrderRequest struct {
	Actor   Actor  `json:"actor"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type AnonymizeCustomerRequest struct {
	CustomerID string `json:"customer_id"`
}

type AnonymizeCustomerResponse struct {
	Orders int `json:"orders"`
}

type SellerMetricsRequest struct {
	Actor    Actor  `json:"actor"`
	SellerID string `json:"seller_id"`
}

type SellerMetrics struct {
	SellerID    string `json:"seller_id"`
	TotalSales  string `json:"total_sales"`
	TotalOrders int    `json:"total_orders"`
}

type OrderServiceServer interface {
	CreateOrder(context.Context, *CreateOrderRequest) (*Order, error)
	GetOrder(context.Context, *GetOrderRequest) (*Order, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
	UpdateItemStatus(context.Context, *UpdateItemStatusRequest) (*OrderItem, error)
	ShipOrder(context.Context, *ShipOrderRequest) (*Order, error)
	TransitionOrder(context.Context, *TransitionOrderRequest) (*Order, error)
	AnonymizeCustomer(context.Context, *AnonymizeCustomerRequest) (*AnonymizeCustomerResponse, error)
	GetSellerMetrics(context.Context, *SellerMetricsRequest) (*SellerMetrics, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		grpcjson.Unary(ServiceName, "CreateOrder", OrderServiceServer.CreateOrder),
		grpcjson.Unary(ServiceName, "GetOrder", OrderServiceServer.GetOrder),
		grpcjson.Unary(ServiceName, "ListOrders", OrderServiceServer.ListOrders),
		grpcjson.Unary(ServiceName, "UpdateItemStatus", OrderServiceServer.UpdateItemStatus),
		grpcjson.Unary(ServiceName, "ShipOrder", OrderServiceServer.ShipOrder),
		grpcjson.Unary(ServiceName, "TransitionOrder", OrderServiceServer.TransitionOrder),
		grpcjson.Unary(ServiceName, "AnonymizeCustomer", OrderServiceServer.AnonymizeCustomer),
		grpcjson.Unary(ServiceName, "GetSellerMetrics", OrderServiceServer.GetSellerMetrics),
	},
	Metadata: "api/order/v1/order.go",
}

func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type OrderServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderServiceClient(cc grpc.ClientConnInterface) *OrderServiceClient {
	return &OrderServiceClient{cc: cc}
}

func (c *OrderServiceClient) CreateOrder(ctx context.Context, in *CreateOrderRequest, opts ...grpc.CallOption) (*Order, error) {
	return grpcjson.Invoke[Order](ctx, c.cc, ServiceName, "CreateOrder", in, opts...)
}

func (c *OrderServiceClient) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*Order, error) {
	return grpcjson.Invoke[Order](ctx, c.cc, ServiceName, "GetOrder", in, opts...)
}

func (c *OrderServiceClient) ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	return grpcjson.Invoke[ListOrdersResponse](ctx, c.cc, ServiceName, "ListOrders", in, opts...)
}

func (c *OrderServiceClient) UpdateItemStatus(ctx context.Context, in *UpdateItemStatusRequest, opts ...grpc.CallOption) (*OrderItem, error) {
	return grpcjson.Invoke[OrderItem](ctx, c.cc, ServiceName, "UpdateItemStatus", in, opts...)
}

func (c *OrderServiceClient) ShipOrder(ctx context.Context, in *ShipOrderRequest, opts ...grpc.CallOption) (*Order, error) {
	return grpcjson.Invoke[Order](ctx, c.cc, ServiceName, "ShipOrder", in, opts...)
}

func (c *OrderServiceClient) TransitionOrder(ctx context.Context, in *TransitionOrderRequest, opts ...grpc.CallOption) (*Order, error) {
	return grpcjson.Invoke[Order](ctx, c.cc, ServiceName, "TransitionOrder", in, opts...)
}

func (c *OrderServiceClient) AnonymizeCustomer(ctx context.Context, in *AnonymizeCustomerRequest, opts ...grpc.CallOption) (*AnonymizeCustomerResponse, error) {
	return grpcjson.Invoke[AnonymizeCustomerResponse](ctx, c.cc, ServiceName, "AnonymizeCustomer", in, opts...)
}

func (c *OrderServiceClient) GetSellerMetrics(ctx context.Context, in *SellerMetricsRequest, opts ...grpc.CallOption) (*SellerMetrics, error) {
	return grpcjson.Invoke[SellerMetrics](ctx, c.cc, ServiceName, "GetSellerMetrics", in, opts...)
}
