// Package cartv1 is the wire contract of the cart service. Messages travel
// with the grpcjson codec.
package cartv1

import (
	"context"

	"google.golang.org/grpc"

	"github.com/dwikikusuma/shoping-market/pkg/grpcjson"
)

const ServiceName = "cart.v1.CartService"

type CartItem struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	VariantID   string `json:"variant_id,omitempty"`
	ProductName string `json:"product_name,omitempty"`
	VariantName string `json:"variant_name,omitempty"`
	SellerID    string `json:"seller_id,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Stock       int    `json:"stock"`
}

type Cart struct {
	ID            string     `json:"id,omitempty"`
	CustomerID    string     `json:"customer_id"`
	Items         []CartItem `json:"items"`
	Subtotal      string     `json:"subtotal"`
	UpdatedAtUnix int64      `json:"updated_at_unix,omitempty"`
}

type CustomerID struct {
	ID string `json:"id"`
}

type AddItemRequest struct {
	CustomerID  string `json:"customer_id"`
	ProductID   string `json:"product_id"`
	Quantity    int    `json:"quantity"`
	VariantName string `json:"variant_name,omitempty"`
}

type UpdateQuantityRequest struct {
	CustomerID string `json:"customer_id"`
	ItemID     string `json:"item_id"`
	Quantity   int    `json:"quantity"`
}

type RemoveItemRequest struct {
	CustomerID string `json:"customer_id"`
	ItemID     string `json:"item_id"`
}

type Empty struct{}

type CartServiceServer interface {
	GetCart(context.Context, *CustomerID) (*Cart, error)
	AddItem(context.Context, *AddItemRequest) (*CartItem, error)
	UpdateQuantity(context.Context, *UpdateQuantityRequest) (*Empty, error)
	RemoveItem(context.Context, *RemoveItemRequest) (*Empty, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CartServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		grpcjson.Unary(ServiceName, "GetCart", CartServiceServer.GetCart),
		grpcjson.Unary(ServiceName, "AddItem", CartServiceServer.AddItem),
		grpcjson.Unary(ServiceName, "UpdateQuantity", CartServiceServer.UpdateQuantity),
		grpcjson.Unary(ServiceName, "RemoveItem", CartServiceServer.RemoveItem),
	},
	Metadata: "api/cart/v1/cart.go",
}

func RegisterCartServiceServer(s grpc.ServiceRegistrar, srv CartServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type CartServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewCartServiceClient(cc grpc.ClientConnInterface) *CartServiceClient {
	return &CartServiceClient{cc: cc}
}

func (c *CartServiceClient) GetCart(ctx context.Context, in *CustomerID, opts ...grpc.CallOption) (*Cart, error) {
	return grpcjson.Invoke[Cart](ctx, c.cc, ServiceName, "GetCart", in, opts...)
}

func (c *CartServiceClient) AddItem(ctx context.Context, in *AddItemRequest, opts ...grpc.CallOption) (*CartItem, error) {
	return grpcjson.Invoke[CartItem](ctx, c.cc, ServiceName, "AddItem", in, opts...)
}

func (c *CartServiceClient) UpdateQuantity(ctx context.Context, in *UpdateQuantityRequest, opts ...grpc.CallOption) (*Empty, error) {
	return grpcjson.Invoke[Empty](ctx, c.cc, ServiceName, "UpdateQuantity", in, opts...)
}

func (c *CartServiceClient) RemoveItem(ctx context.Context, in *RemoveItemRequest, opts ...grpc.CallOption) (*Empty, error) {
	return grpcjson.Invoke[Empty](ctx, c.cc, ServiceName, "RemoveItem", in, opts...)
}
