package adapter

import (
	"context"

	cartapp "github.com/dwikikusuma/shoping-market/internal/cart/app"
	checkoutapp "github.com/dwikikusuma/shoping-market/internal/checkout/app"
)

type CartServiceReader struct {
	svc *cartapp.Service
}

func NewCartServiceReader(svc *cartapp.Service) *CartServiceReader {
	return &CartServiceReader{svc: svc}
}

func (r *CartServiceReader) SelectedItems(ctx context.Context, customerID string, ids []string) ([]checkoutapp.CartItem, error) {
	items, err := r.svc.ItemsForCheckout(ctx, customerID, ids)
	if err != nil {
		return nil, err
	}

	out := make([]checkoutapp.CartItem, 0, len(items))
	for _, it := range items {
		out = append(out, checkoutapp.CartItem{
			ID:        it.ID,
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
		})
	}
	return out, nil
}
