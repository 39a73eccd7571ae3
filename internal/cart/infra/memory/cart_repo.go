package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dwikikusuma/shoping-market/internal/apperr"
	"github.com/dwikikusuma/shoping-market/internal/cart/domain"
)

type CartRepo struct {
	mu         sync.Mutex
	carts      map[string]*domain.Cart // by customer id
	itemsOwner map[string]string       // item id -> customer id
}

func NewCartRepo() *CartRepo {
	return &CartRepo{
		carts:      make(map[string]*domain.Cart),
		itemsOwner: make(map[string]string),
	}
}

func (r *CartRepo) Get(_ context.Context, customerID string) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[customerID]
	if !ok {
		return domain.Cart{}, apperr.NotFound("cart for customer", customerID)
	}
	return snapshot(c), nil
}

func (r *CartRepo) GetOrCreate(_ context.Context, customerID string) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[customerID]
	if !ok {
		now := time.Now().UTC()
		c = &domain.Cart{ID: uuid.NewString(), CustomerID: customerID, CreatedAt: now, UpdatedAt: now}
		r.carts[customerID] = c
	}
	return snapshot(c), nil
}

func (r *CartRepo) AddItem(_ context.Context, cartID string, item domain.CartItem) (domain.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.byID(cartID)
	if c == nil {
		return domain.CartItem{}, apperr.NotFound("cart", cartID)
	}
	now := time.Now().UTC()
	c.UpdatedAt = now
	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID && c.Items[i].VariantID == item.VariantID {
			c.Items[i].Quantity += item.Quantity
			c.Items[i].UpdatedAt = now
			return c.Items[i], nil
		}
	}

	item.ID = uuid.NewString()
	item.CartID = c.ID
	item.CreatedAt = now
	item.UpdatedAt = now
	c.Items = append(c.Items, item)
	r.itemsOwner[item.ID] = c.CustomerID
	return item, nil
}

func (r *CartRepo) SetItemQuantity(_ context.Context, customerID, itemID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.itemsOwner[itemID] != customerID {
		return apperr.NotFound("cart item", itemID)
	}
	c := r.carts[customerID]
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items[i].Quantity = quantity
			c.Items[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return apperr.NotFound("cart item", itemID)
}

func (r *CartRepo) RemoveItems(_ context.Context, customerID string, itemIDs []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[customerID]
	if !ok {
		return 0, nil
	}
	drop := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		if r.itemsOwner[id] == customerID {
			drop[id] = true
		}
	}
	kept := c.Items[:0]
	removed := 0
	for _, it := range c.Items {
		if drop[it.ID] {
			delete(r.itemsOwner, it.ID)
			removed++
			continue
		}
		kept = append(kept, it)
	}
	c.Items = kept
	return removed, nil
}

func (r *CartRepo) byID(cartID string) *domain.Cart {
	for _, c := range r.carts {
		if c.ID == cartID {
			return c
		}
	}
	return nil
}

func snapshot(c *domain.Cart) domain.Cart {
	out := *c
	out.Items = append([]domain.CartItem{}, c.Items...)
	sort.SliceStable(out.Items, func(i, j int) bool { return out.Items[i].CreatedAt.Before(out.Items[j].CreatedAt) })
	return out
}
