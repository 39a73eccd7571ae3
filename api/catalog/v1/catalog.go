// Package catalogv1 is the read-only wire contract of the catalog.
package catalogv1

import (
	"context"

	"google.golang.org/grpc"

	"github.com/dwikikusuma/shoping-market/pkg/grpcjson"
)

const ServiceName = "catalog.v1.CatalogService"

type Variant struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	FinalPrice string `json:"final_price"`
	Stock      int    `json:"stock"`
}

type Product struct {
	ID                 string    `json:"id"`
	SellerID           string    `json:"seller_id"`
	Name               string    `json:"name"`
	BasePrice          string    `json:"base_price"`
	DiscountPercentage string    `json:"discount_percentage,omitempty"`
	FinalPrice         string    `json:"final_price"`
	Variants           []Variant `json:"variants"`
	CreatedAtUnix      int64     `json:"created_at_unix"`
	UpdatedAtUnix      int64     `json:"updated_at_unix"`
}

type GetProductRequest struct {
	ID string `json:"id"`
}

type ListProductsRequest struct {
	Query  string `json:"query,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Cursor string `json:"cursor,omitempty"`
}

type ListProductsResponse struct {
	Products   []Product `json:"products"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

type CatalogServiceServer interface {
	GetProduct(context.Context, *GetProductRequest) (*Product, error)
	ListProducts(context.Context, *ListProductsRequest) (*ListProductsResponse, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CatalogServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		grpcjson.Unary(ServiceName, "GetProduct", CatalogServiceServer.GetProduct),
		grpcjson.Unary(ServiceName, "ListProducts", CatalogServiceServer.ListProducts),
	},
	Metadata: "api/catalog/v1/catalog.go",
}

func RegisterCatalogServiceServer(s grpc.ServiceRegistrar, srv CatalogServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type CatalogServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewCatalogServiceClient(cc grpc.ClientConnInterface) *CatalogServiceClient {
	return &CatalogServiceClient{cc: cc}
}

func (c *CatalogServiceClient) GetProduct(ctx context.Context, in *GetProductRequest, opts ...grpc.CallOption) (*Product, error) {
	return grpcjson.Invoke[Product](ctx, c.cc, ServiceName, "GetProduct", in, opts...)
}

func (c *CatalogServiceClient) ListProducts(ctx context.Context, in *ListProductsRequest, opts ...grpc.CallOption) (*ListProductsResponse, error) {
	return grpcjson.Invoke[ListProductsResponse](ctx, c.cc, ServiceName, "ListProducts", in, opts...)
}
