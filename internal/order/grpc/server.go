package grpc

import (
	"context"

	"github.com/shopspring/decimal"

	orderv1 "github.com/dwikikusuma/shoping-market/api/order/v1"
	"github.com/dwikikusuma/shoping-market/internal/apperr"
	"github.com/dwikikusuma/shoping-market/internal/order/app"
	"github.com/dwikikusuma/shoping-market/internal/order/domain"
)

type Server struct {
	svc *app.Service
}

func NewServer(svc *app.Service) *Server {
	return &Server{svc: svc}
}

var _ orderv1.OrderServiceServer = (*Server)(nil)

func (s *Server) CreateOrder(ctx context.Context, req *orderv1.CreateOrderRequest) (*orderv1.Order, error) {
	if len(req.CartItemIDs) == 0 {
		return nil, apperr.ToStatus(apperr.Invalid("cart_item_ids must not be empty"))
	}

	lines, err := LinesFromProto(req.Lines)
	if err != nil {
		return nil, apperr.ToStatus(err)
	}
	total := decimal.Zero
	if req.TotalAmount != "" {
		if total, err = decimal.NewFromString(req.TotalAmount); err != nil {
			return nil, apperr.ToStatus(apperr.Invalid("total_amount %q is not a number", req.TotalAmount))
		}
	}

	order, err := s.svc.CreateOrder(ctx, app.CreateOrderInput{
		CustomerID:    req.CustomerID,
		CartItemIDs:   req.CartItemIDs,
		Lines:         lines,
		TotalAmount:   total,
		PaymentID:     req.PaymentID,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		return nil, apperr.ToStatus(err)
	}
	return ToProto(order), nil
}

func (s *Server) GetOrder(ctx context.Context, req *orderv1.GetOrderRequest) (*orderv1.Order, error) {
	order, err := s.svc.GetOrder(ctx, actorFromProto(req.Actor), req.OrderID)
	if err != nil {
		return nil, apperr.ToStatus(err)
	}
	return ToProto(order), nil
}

func (s *Server) ListOrders(ctx context.Context, req *orderv1.ListOrdersRequest) (*orderv1.ListOrdersResponse, error) {
	orders, err := s.svc.ListOrders(ctx, actorFromProto(req.Actor), req.Limit)
	if err != nil {
		return nil, apperr.ToStatus(err)
	}
	out := &orderv1.ListOrdersResponse{Orders: make([]orderv1.Order, 0, len(orders))}
	for _, o := range orders {
		out.Orders = append(out.Orders, *ToProto(o))
	}
	return out, nil
}

func (s *Server) UpdateItemStatus(ctx context.Context, req *orderv1.UpdateItemStatusRequest) (*orderv1.OrderItem, error) {
	item, err := s.svc.UpdateItemStatus(ctx, actorFromProto(req.Actor), app.ItemStatusUpdate{
		ItemID:           req.ItemID,
		Status:           req.Status,
		TrackingNumber:   req.TrackingNumber,
		ShippingProvider: req.ShippingProvider,
	})
	if err != nil {
		return nil, apperr.ToStatus(err)
	}
	out := itemToProto(item)
	return &out, nil
}

func (s *Server) ShipOrder(ctx context.Context, req *orderv1.ShipOrderRequest) (*orderv1.Order, error) {
	order, err := s.svc.ShipOrder(ctx, actorFromProto(req.Actor), req.OrderID, req.TrackingNumber, req.Courier)
	if err != nil {
		return nil, apperr.ToStatus(err)
	}
	return ToProto(order), nil
}

func (s *Server) TransitionOrder(ctx context.Context, req *orderv1.TransitionOrderRequest) (*orderv1.Order, error) {
	order, err := s.svc.TransitionOrder(ctx, actorFromProto(req.Actor), req.OrderID, req.Status)
	if err != nil {
		return nil, apperr.ToStatus(err)
	}
	return ToProto(order), nil
}

func (s *Server) AnonymizeCustomer(ctx context.Context, req *orderv1.AnonymizeCustomerRequest) (*orderv1.AnonymizeCustomerResponse, error) {
	n, err := s.svc.AnonymizeCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, apperr.ToStatus(err)
	}
	return &orderv1.AnonymizeCustomerResponse{Orders: n}, nil
}

func (s *Server) GetSellerMetrics(ctx context.Context, req *orderv1.SellerMetricsRequest) (*orderv1.SellerMetrics, error) {
	sm, err := s.svc.SellerMetrics(ctx, actorFromProto(req.Actor), req.SellerID)
	if err != nil {
		return nil, apperr.ToStatus(err)
	}
	return &orderv1.SellerMetrics{
		SellerID:    sm.SellerID,
		TotalSales:  sm.TotalSales.StringFixed(2),
		TotalOrders: sm.TotalOrders,
	}, nil
}

func actorFromProto(a orderv1.Actor) domain.Actor {
	return domain.Actor{UserID: a.UserID, Role: domain.Role(a.Role), SellerID: a.SellerID}
}

// LinesFromProto parses wire line items; prices must be decimal strings.
func LinesFromProto(in []orderv1.LineItem) ([]domain.LineSnapshot, error) {
	out := make([]domain.LineSnapshot, 0, len(in))
	for i, l := range in {
		price, err := decimal.NewFromString(l.UnitPrice)
		if err != nil {
			return nil, apperr.Invalid("line %d: unit_price %q is not a number", i, l.UnitPrice)
		}
		out = append(out, domain.LineSnapshot{
			CartItemID:  l.CartItemID,
			ProductID:   l.ProductID,
			VariantID:   l.VariantID,
			ProductName: l.ProductName,
			VariantName: l.VariantName,
			SellerID:    l.SellerID,
			UnitPrice:   price,
			Quantity:    l.Quantity,
		})
	}
	return out, nil
}

func ToProto(o domain.Order) *orderv1.Order {
	out := &orderv1.Order{
		ID:             o.ID,
		CustomerID:     o.CustomerID,
		Lines:          make([]orderv1.LineItem, 0, len(o.Lines)),
		TotalAmount:    o.TotalAmount.StringFixed(2),
		Discount:       o.Discount.StringFixed(2),
		Status:         string(o.Status),
		TrackingNumber: o.TrackingNumber,
		Courier:        o.Courier,
		PaymentID:      o.PaymentID,
		PaymentMethod:  o.PaymentMethod,
		ShippedAt:      o.ShippedAt,
		DeliveredAt:    o.DeliveredAt,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
		Items:          make([]orderv1.OrderItem, 0, len(o.Items)),
	}
	if o.SellerID != nil {
		out.SellerID = *o.SellerID
	}
	for _, l := range o.Lines {
		out.Lines = append(out.Lines, orderv1.LineItem{
			CartItemID:  l.CartItemID,
			ProductID:   l.ProductID,
			VariantID:   l.VariantID,
			ProductName: l.ProductName,
			VariantName: l.VariantName,
			SellerID:    l.SellerID,
			UnitPrice:   l.UnitPrice.StringFixed(2),
			Quantity:    l.Quantity,
		})
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, itemToProto(it))
	}
	return out
}

func itemToProto(it domain.Item) orderv1.OrderItem {
	return orderv1.OrderItem{
		ID:               it.ID,
		SellerID:         it.SellerID,
		ProductID:        it.ProductID,
		VariantID:        it.VariantID,
		ProductName:      it.ProductName,
		VariantName:      it.VariantName,
		Quantity:         it.Quantity,
		UnitPrice:        it.UnitPrice.StringFixed(2),
		Status:           string(it.Status),
		TrackingNumber:   it.TrackingNumber,
		ShippingProvider: it.ShippingProvider,
		ShippedAt:        it.ShippedAt,
		DeliveredAt:      it.DeliveredAt,
	}
}
