package app

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/shoping-market/internal/apperr"
	"github.com/dwikikusuma/shoping-market/internal/catalog/domain"
)

type fakeRepo struct {
	products map[string]domain.Product
	lastLim  int
}

func (f *fakeRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return domain.Product{}, apperr.NotFound("product", id)
	}
	return p, nil
}

func (f *fakeRepo) List(ctx context.Context, query string, limit int, cursor string) ([]domain.Product, string, error) {
	f.lastLim = limit
	return nil, "", nil
}

func newFake() *fakeRepo {
	price := decimal.RequireFromString("150")
	return &fakeRepo{products: map[string]domain.Product{
		"p1": {
			ID: "p1", Name: "Tumbler", SellerID: "s1",
			BasePrice: decimal.RequireFromString("100"),
			Variants: []domain.Variant{
				{ID: "v1", ProductID: "p1", Name: "Large", Price: &price, Stock: 4},
			},
		},
	}}
}

func TestQuote(t *testing.T) {
	svc := NewService(newFake())

	t.Run("product level", func(t *testing.T) {
		q, err := svc.Quote(context.Background(), "p1", "")
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if q.UnitPrice.String() != "100" || q.Stock != -1 {
			t.Fatalf("got %s stock=%d", q.UnitPrice, q.Stock)
		}
	})

	t.Run("variant level", func(t *testing.T) {
		q, err := svc.Quote(context.Background(), "p1", "v1")
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if q.UnitPrice.String() != "150" || q.Stock != 4 || q.VariantName != "Large" || q.SellerID != "s1" {
			t.Fatalf("unexpected quote %+v", q)
		}
	})

	t.Run("unknown variant -> not found", func(t *testing.T) {
		_, err := svc.Quote(context.Background(), "p1", "nope")
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("empty id -> invalid", func(t *testing.T) {
		_, err := svc.Quote(context.Background(), "  ", "")
		if !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestListProductsClampsLimit(t *testing.T) {
	repo := newFake()
	svc := NewService(repo)

	_, _, _ = svc.ListProducts(context.Background(), "", 0, "")
	if repo.lastLim != 20 {
		t.Fatalf("expected default 20, got %d", repo.lastLim)
	}
	_, _, _ = svc.ListProducts(context.Background(), "", 1000, "")
	if repo.lastLim != 100 {
		t.Fatalf("expected cap 100, got %d", repo.lastLim)
	}
}
