package adapter

import (
	"context"

	catalogapp "github.com/dwikikusuma/shoping-market/internal/catalog/app"
	checkoutapp "github.com/dwikikusuma/shoping-market/internal/checkout/app"
)

type CatalogServiceReader struct {
	svc *catalogapp.Service
}

func NewCatalogServiceReader(svc *catalogapp.Service) *CatalogServiceReader {
	return &CatalogServiceReader{svc: svc}
}

func (r *CatalogServiceReader) Price(ctx context.Context, productID, variantID string) (checkoutapp.Price, error) {
	q, err := r.svc.Quote(ctx, productID, variantID)
	if err != nil {
		return checkoutapp.Price{}, err
	}

	return checkoutapp.Price{
		ProductName: q.ProductName,
		VariantName: q.VariantName,
		SellerID:    q.SellerID,
		UnitPrice:   q.UnitPrice,
		Stock:       q.Stock,
	}, nil
}
