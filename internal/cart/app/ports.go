package app

import (
	"context"

	"github.com/dwikikusuma/shoping-market/internal/cart/domain"
	catalogdomain "github.com/dwikikusuma/shoping-market/internal/catalog/domain"
)

type CartRepo interface {
	// Get returns apperr.ErrNotFound when the customer has no cart yet.
	Get(ctx context.Context, customerID string) (domain.Cart, error)
	GetOrCreate(ctx context.Context, customerID string) (domain.Cart, error)
	// AddItem inserts the line or increments the quantity of the existing
	// (cart, product, variant) line in one statement.
	AddItem(ctx context.Context, cartID string, item domain.CartItem) (domain.CartItem, error)
	// SetItemQuantity returns apperr.ErrNotFound when the item is not in the
	// customer's cart.
	SetItemQuantity(ctx context.Context, customerID, itemID string, quantity int) error
	// RemoveItems deletes the given items from the customer's cart and
	// reports how many rows went away.
	RemoveItems(ctx context.Context, customerID string, itemIDs []string) (int, error)
}

type Catalog interface {
	GetProduct(ctx context.Context, id string) (catalogdomain.Product, error)
}
