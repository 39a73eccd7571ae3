// Package memory is the in-process catalog used in dev mode and tests. It
// also owns variant stock so that it can act as the stock ledger for the
// in-memory order repository.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/shoping-market/internal/apperr"
	"github.com/dwikikusuma/shoping-market/internal/catalog/domain"
)

type ProductStore struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

func NewProductStore() *ProductStore {
	return &ProductStore{products: make(map[string]domain.Product)}
}

// Put inserts or replaces a product and its variants.
func (s *ProductStore) Put(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p.Variants = append([]domain.Variant(nil), p.Variants...)
	for i := range p.Variants {
		p.Variants[i].ProductID = p.ID
	}
	s.products[p.ID] = p
}

func (s *ProductStore) Get(_ context.Context, id string) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, apperr.NotFound("product", id)
	}
	p.Variants = append([]domain.Variant(nil), p.Variants...)
	return p, nil
}

func (s *ProductStore) List(_ context.Context, query string, limit int, cursor string) ([]domain.Product, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.products))
	for id := range s.products {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.Product, 0, limit)
	var next string
	for _, id := range ids {
		if cursor != "" && id <= cursor {
			continue
		}
		p := s.products[id]
		if query != "" && !strings.Contains(strings.ToLower(p.Name), query) {
			continue
		}
		out = append(out, p)
		next = id
		if len(out) == limit {
			break
		}
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

// SetBasePrice changes a product's base price.
func (s *ProductStore) SetBasePrice(productID string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[productID]; ok {
		p.BasePrice = price
		p.UpdatedAt = time.Now().UTC()
		s.products[productID] = p
	}
}

// SetVariantPrice sets (or clears, with nil) a variant price override.
func (s *ProductStore) SetVariantPrice(productID, variantID string, price *decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateVariant(productID, variantID, func(v *domain.Variant) { v.Price = price })
}

func (s *ProductStore) SetStock(productID, variantID string, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateVariant(productID, variantID, func(v *domain.Variant) { v.Stock = stock })
}

func (s *ProductStore) Stock(variantID string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if v, ok := p.VariantByID(variantID); ok {
			return v.Stock, true
		}
	}
	return 0, false
}

// StockDecrement is one conditional decrement request.
type StockDecrement struct {
	ProductID string
	VariantID string
	Quantity  int
}

// DecrementAll applies every decrement whose variant has stock >= quantity,
// as one unit: if any request fails, none is applied and the index of the
// failing request is returned with ok=false.
func (s *ProductStore) DecrementAll(reqs []StockDecrement) (failed int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type pos struct {
		productID string
		idx       int
	}
	planned := make(map[pos]int)
	for i, r := range reqs {
		p, exists := s.products[r.ProductID]
		if !exists {
			return i, false
		}
		vi := variantIndex(p, r.VariantID)
		if vi < 0 {
			return i, false
		}
		key := pos{r.ProductID, vi}
		if p.Variants[vi].Stock-planned[key] < r.Quantity {
			return i, false
		}
		planned[key] += r.Quantity
	}

	for key, qty := range planned {
		p := s.products[key.productID]
		variants := append([]domain.Variant(nil), p.Variants...)
		variants[key.idx].Stock -= qty
		p.Variants = variants
		s.products[key.productID] = p
	}
	return -1, true
}

func (s *ProductStore) updateVariant(productID, variantID string, fn func(*domain.Variant)) {
	p, ok := s.products[productID]
	if !ok {
		return
	}
	vi := variantIndex(p, variantID)
	if vi < 0 {
		return
	}
	variants := append([]domain.Variant(nil), p.Variants...)
	fn(&variants[vi])
	p.Variants = variants
	p.UpdatedAt = time.Now().UTC()
	s.products[productID] = p
}

func variantIndex(p domain.Product, variantID string) int {
	for i, v := range p.Variants {
		if v.ID == variantID {
			return i
		}
	}
	return -1
}
