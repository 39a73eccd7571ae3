package adapter

import (
	"context"

	checkoutapp "github.com/dwikikusuma/shoping-market/internal/checkout/app"
	orderapp "github.com/dwikikusuma/shoping-market/internal/order/app"
	orderdomain "github.com/dwikikusuma/shoping-market/internal/order/domain"
)

type OrderServicePlacer struct {
	svc *orderapp.Service
}

func NewOrderServicePlacer(svc *orderapp.Service) *OrderServicePlacer {
	return &OrderServicePlacer{svc: svc}
}

func (p *OrderServicePlacer) PlaceOrder(ctx context.Context, req checkoutapp.PlaceOrderRequest) (string, error) {
	lines := make([]orderdomain.LineSnapshot, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, orderdomain.LineSnapshot{
			CartItemID:  l.CartItemID,
			ProductID:   l.ProductID,
			VariantID:   l.VariantID,
			ProductName: l.ProductName,
			VariantName: l.VariantName,
			SellerID:    l.SellerID,
			UnitPrice:   l.UnitPrice,
			Quantity:    l.Quantity,
		})
	}

	o, err := p.svc.CreateOrder(ctx, orderapp.CreateOrderInput{
		CustomerID:    req.CustomerID,
		CartItemIDs:   req.CartItemIDs,
		Lines:         lines,
		TotalAmount:   req.TotalAmount,
		PaymentID:     req.PaymentID,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		return "", err
	}
	return o.ID, nil
}
