package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dwikikusuma/shoping-market/internal/apperr"
	"github.com/dwikikusuma/shoping-market/internal/cart/domain"
	catalogdomain "github.com/dwikikusuma/shoping-market/internal/catalog/domain"
)

type Service struct {
	repo    CartRepo
	catalog Catalog
	log     *slog.Logger
}

func NewService(repo CartRepo, catalog Catalog, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		catalog: catalog,
		log:     log,
	}
}

// AddItem puts quantity units of a product (and named variant) into the
// customer's cart, creating the cart on first use.
func (s *Service) AddItem(ctx context.Context, customerID, productID string, quantity int, variantName string) (domain.CartItem, error) {
	if strings.TrimSpace(customerID) == "" {
		return domain.CartItem{}, apperr.Invalid("customer id is required")
	}
	if strings.TrimSpace(productID) == "" {
		return domain.CartItem{}, apperr.Invalid("product id is required")
	}
	if quantity < 1 {
		return domain.CartItem{}, apperr.Invalid("quantity must be at least 1, got %d", quantity)
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return domain.CartItem{}, err
	}

	item := domain.CartItem{ProductID: product.ID, Quantity: quantity}

	variantName = strings.TrimSpace(variantName)
	if variantName != "" {
		v, ok := product.VariantByName(variantName)
		if !ok {
			return domain.CartItem{}, apperr.NotFound("variant", variantName)
		}
		if v.Stock < quantity {
			return domain.CartItem{}, &apperr.StockError{
				ProductID: product.ID, ProductName: product.Name,
				VariantID: v.ID, VariantName: v.Name,
				Requested: quantity, Available: v.Stock,
			}
		}
		item.VariantID = v.ID
	}

	cart, err := s.repo.GetOrCreate(ctx, customerID)
	if err != nil {
		return domain.CartItem{}, fmt.Errorf("get or create cart: %w", err)
	}

	added, err := s.repo.AddItem(ctx, cart.ID, item)
	if err != nil {
		return domain.CartItem{}, fmt.Errorf("add item: %w", err)
	}
	return added, nil
}

// GetCart returns the customer's cart with catalog names and prices filled
// in. A customer without a cart gets an empty one.
func (s *Service) GetCart(ctx context.Context, customerID string) (domain.Cart, error) {
	if strings.TrimSpace(customerID) == "" {
		return domain.Cart{}, apperr.Invalid("customer id is required")
	}

	cart, err := s.repo.Get(ctx, customerID)
	if errors.Is(err, apperr.ErrNotFound) {
		return domain.Cart{CustomerID: customerID, Items: []domain.CartItem{}}, nil
	}
	if err != nil {
		return domain.Cart{}, err
	}

	for i := range cart.Items {
		s.resolve(ctx, &cart.Items[i])
	}
	return cart, nil
}

// UpdateQuantity sets the quantity of one line. Stock is not checked here;
// checkout validates it.
func (s *Service) UpdateQuantity(ctx context.Context, customerID, itemID string, quantity int) error {
	if quantity < 1 {
		return apperr.Invalid("quantity must be at least 1, got %d", quantity)
	}
	if strings.TrimSpace(itemID) == "" {
		return apperr.Invalid("item id is required")
	}
	return s.repo.SetItemQuantity(ctx, customerID, itemID, quantity)
}

// RemoveItem is idempotent: removing an absent item succeeds.
func (s *Service) RemoveItem(ctx context.Context, customerID, itemID string) error {
	n, err := s.repo.RemoveItems(ctx, customerID, []string{itemID})
	if err != nil {
		return fmt.Errorf("remove item: %w", err)
	}
	if n == 0 {
		s.log.Debug("remove of absent cart item", slog.String("item_id", itemID))
	}
	return nil
}

// ItemsForCheckout returns the customer's items among itemIDs, in the order
// requested. Unknown ids are skipped; callers decide whether that is fatal.
func (s *Service) ItemsForCheckout(ctx context.Context, customerID string, itemIDs []string) ([]domain.CartItem, error) {
	cart, err := s.repo.Get(ctx, customerID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.CartItem, len(cart.Items))
	for _, it := range cart.Items {
		byID[it.ID] = it
	}

	out := make([]domain.CartItem, 0, len(itemIDs))
	seen := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		if it, ok := byID[id]; ok && !seen[id] {
			out = append(out, it)
			seen[id] = true
		}
	}
	return out, nil
}

// RemoveItems drops checked-out lines; unselected lines stay.
func (s *Service) RemoveItems(ctx context.Context, customerID string, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	_, err := s.repo.RemoveItems(ctx, customerID, itemIDs)
	return err
}

func (s *Service) resolve(ctx context.Context, it *domain.CartItem) {
	product, err := s.catalog.GetProduct(ctx, it.ProductID)
	if err != nil {
		s.log.Warn("cart item product lookup failed",
			slog.String("product_id", it.ProductID), slog.Any("err", err))
		return
	}
	it.ProductName = product.Name
	it.SellerID = product.SellerID
	it.Stock = -1

	var variant *catalogdomain.Variant
	if it.VariantID != "" {
		if v, ok := product.VariantByID(it.VariantID); ok {
			variant = &v
			it.VariantName = v.Name
			it.Stock = v.Stock
		}
	}
	it.UnitPrice = catalogdomain.FinalPrice(product, variant)
}
