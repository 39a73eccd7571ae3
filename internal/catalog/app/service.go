package app

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/shoping-market/internal/apperr"
	"github.com/dwikikusuma/shoping-market/internal/catalog/domain"
)

type Service struct {
	repo ProductRepo
}

func NewService(repo ProductRepo) *Service {
	return &Service{
		repo: repo,
	}
}

// PriceQuote is the live price and stock of one sellable line.
type PriceQuote struct {
	ProductID   string
	VariantID   string
	ProductName string
	VariantName string
	SellerID    string
	UnitPrice   decimal.Decimal
	// Stock is -1 for products without variants (untracked).
	Stock int
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Product{}, apperr.Invalid("product id is required")
	}
	return s.repo.Get(ctx, id)
}

// Quote prices a product, or one of its variants when variantID is set.
func (s *Service) Quote(ctx context.Context, productID, variantID string) (PriceQuote, error) {
	p, err := s.GetProduct(ctx, productID)
	if err != nil {
		return PriceQuote{}, err
	}

	q := PriceQuote{
		ProductID:   p.ID,
		ProductName: p.Name,
		SellerID:    p.SellerID,
		Stock:       -1,
	}

	if variantID == "" {
		q.UnitPrice = domain.FinalPrice(p, nil)
		return q, nil
	}

	v, ok := p.VariantByID(variantID)
	if !ok {
		return PriceQuote{}, apperr.NotFound("variant", variantID)
	}
	q.VariantID = v.ID
	q.VariantName = v.Name
	q.Stock = v.Stock
	q.UnitPrice = domain.FinalPrice(p, &v)
	return q, nil
}

func (s *Service) ListProducts(ctx context.Context, query string, limit int, cursor string) ([]domain.Product, string, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, query, limit, cursor)
}
