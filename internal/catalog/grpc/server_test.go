package grpc

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	catalogv1 "github.com/dwikikusuma/shoping-market/api/catalog/v1"
	"github.com/dwikikusuma/shoping-market/internal/catalog/app"
	"github.com/dwikikusuma/shoping-market/internal/catalog/domain"
	"github.com/dwikikusuma/shoping-market/internal/catalog/infra/memory"
)

func TestGetProductPrices(t *testing.T) {
	store := memory.NewProductStore()
	discount := decimal.RequireFromString("10")
	gold := decimal.RequireFromString("250")
	store.Put(domain.Product{
		ID: "p-mug", SellerID: "s-1", Name: "Mug",
		BasePrice:          decimal.RequireFromString("100"),
		DiscountPercentage: &discount,
		Variants: []domain.Variant{
			{ID: "v-red", Name: "Red", Stock: 3},
			{ID: "v-gold", Name: "Gold", Price: &gold, Stock: 1},
		},
	})
	srv := NewServer(app.NewService(store))

	p, err := srv.GetProduct(context.Background(), &catalogv1.GetProductRequest{ID: "p-mug"})
	require.NoError(t, err)
	assert.Equal(t, "90.00", p.FinalPrice)
	require.Len(t, p.Variants, 2)
	assert.Equal(t, "90.00", p.Variants[0].FinalPrice)
	assert.Equal(t, "225.00", p.Variants[1].FinalPrice)

	_, err = srv.GetProduct(context.Background(), &catalogv1.GetProductRequest{ID: "nope"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}
