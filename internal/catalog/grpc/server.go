package grpc

import (
	"context"

	catalogv1 "github.com/dwikikusuma/shoping-market/api/catalog/v1"
	"github.com/dwikikusuma/shoping-market/internal/apperr"
	"github.com/dwikikusuma/shoping-market/internal/catalog/app"
	"github.com/dwikikusuma/shoping-market/internal/catalog/domain"
)

type Server struct {
	svc *app.Service
}

func NewServer(svc *app.Service) *Server {
	return &Server{svc: svc}
}

var _ catalogv1.CatalogServiceServer = (*Server)(nil)

func (s *Server) GetProduct(ctx context.Context, req *catalogv1.GetProductRequest) (*catalogv1.Product, error) {
	p, err := s.svc.GetProduct(ctx, req.ID)
	if err != nil {
		return nil, apperr.ToStatus(err)
	}
	return toProto(p), nil
}

func (s *Server) ListProducts(ctx context.Context, req *catalogv1.ListProductsRequest) (*catalogv1.ListProductsResponse, error) {
	products, next, err := s.svc.ListProducts(ctx, req.Query, req.Limit, req.Cursor)
	if err != nil {
		return nil, apperr.ToStatus(err)
	}

	out := make([]catalogv1.Product, 0, len(products))
	for _, p := range products {
		out = append(out, *toProto(p))
	}

	return &catalogv1.ListProductsResponse{Products: out, NextCursor: next}, nil
}

func toProto(p domain.Product) *catalogv1.Product {
	out := &catalogv1.Product{
		ID:            p.ID,
		SellerID:      p.SellerID,
		Name:          p.Name,
		BasePrice:     p.BasePrice.StringFixed(2),
		FinalPrice:    domain.FinalPrice(p, nil).StringFixed(2),
		Variants:      make([]catalogv1.Variant, 0, len(p.Variants)),
		CreatedAtUnix: p.CreatedAt.Unix(),
		UpdatedAtUnix: p.UpdatedAt.Unix(),
	}
	if p.DiscountPercentage != nil {
		out.DiscountPercentage = p.DiscountPercentage.String()
	}
	for _, v := range p.Variants {
		out.Variants = append(out.Variants, catalogv1.Variant{
			ID:         v.ID,
			Name:       v.Name,
			FinalPrice: domain.FinalPrice(p, &v).StringFixed(2),
			Stock:      v.Stock,
		})
	}
	return out
}
