package grpc

import (
	"context"

	cartv1 "github.com/dwikikusuma/shoping-market/api/cart/v1"
	"github.com/dwikikusuma/shoping-market/internal/apperr"
	"github.com/dwikikusuma/shoping-market/internal/cart/app"
	"github.com/dwikikusuma/shoping-market/internal/cart/domain"
)

type Server struct {
	svc *app.Service
}

func NewServer(svc *app.Service) *Server {
	return &Server{svc: svc}
}

var _ cartv1.CartServiceServer = (*Server)(nil)

func (s *Server) GetCart(ctx context.Context, req *cartv1.CustomerID) (*cartv1.Cart, error) {
	cart, err := s.svc.GetCart(ctx, req.ID)
	if err != nil {
		return nil, apperr.ToStatus(err)
	}
	return toProto(cart), nil
}

func (s *Server) AddItem(ctx context.Context, req *cartv1.AddItemRequest) (*cartv1.CartItem, error) {
	item, err := s.svc.AddItem(ctx, req.CustomerID, req.ProductID, req.Quantity, req.VariantName)
	if err != nil {
		return nil, apperr.ToStatus(err)
	}
	out := itemToProto(item)
	out.VariantName = req.VariantName
	return &out, nil
}

func (s *Server) UpdateQuantity(ctx context.Context, req *cartv1.UpdateQuantityRequest) (*cartv1.Empty, error) {
	if err := s.svc.UpdateQuantity(ctx, req.CustomerID, req.ItemID, req.Quantity); err != nil {
		return nil, apperr.ToStatus(err)
	}
	return &cartv1.Empty{}, nil
}

func (s *Server) RemoveItem(ctx context.Context, req *cartv1.RemoveItemRequest) (*cartv1.Empty, error) {
	if err := s.svc.RemoveItem(ctx, req.CustomerID, req.ItemID); err != nil {
		return nil, apperr.ToStatus(err)
	}
	return &cartv1.Empty{}, nil
}

func toProto(cart domain.Cart) *cartv1.Cart {
	items := make([]cartv1.CartItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, itemToProto(item))
	}

	out := &cartv1.Cart{
		ID:         cart.ID,
		CustomerID: cart.CustomerID,
		Items:      items,
		Subtotal:   cart.Subtotal().StringFixed(2),
	}
	if !cart.UpdatedAt.IsZero() {
		out.UpdatedAtUnix = cart.UpdatedAt.Unix()
	}
	return out
}

func itemToProto(item domain.CartItem) cartv1.CartItem {
	return cartv1.CartItem{
		ID:          item.ID,
		ProductID:   item.ProductID,
		VariantID:   item.VariantID,
		ProductName: item.ProductName,
		VariantName: item.VariantName,
		SellerID:    item.SellerID,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice.StringFixed(2),
		Stock:       item.Stock,
	}
}
