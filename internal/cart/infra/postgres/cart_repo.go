package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dwikikusuma/shoping-market/internal/apperr"
	"github.com/dwikikusuma/shoping-market/internal/cart/domain"
	"github.com/dwikikusuma/shoping-market/pkg/postgres"
)

type CartRepo struct {
	pool *pgxpool.Pool
}

func NewCartRepo(pool *pgxpool.Pool) *CartRepo {
	return &CartRepo{pool: pool}
}

func (r *CartRepo) Get(ctx context.Context, customerID string) (domain.Cart, error) {
	var cart domain.Cart
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, customer_id, created_at, updated_at
		FROM carts WHERE customer_id = $1`, customerID).
		Scan(&cart.ID, &cart.CustomerID, &cart.CreatedAt, &cart.UpdatedAt)
	if postgres.IsNoRows(err) {
		return domain.Cart{}, apperr.NotFound("cart for customer", customerID)
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("get cart: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id::text, cart_id::text, product_id::text, COALESCE(variant_id::text, ''), quantity, created_at, updated_at
		FROM cart_items WHERE cart_id = $1 ORDER BY created_at, id`, cart.ID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	cart.Items = []domain.CartItem{}
	for rows.Next() {
		var it domain.CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.VariantID, &it.Quantity, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return domain.Cart{}, fmt.Errorf("scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, it)
	}
	return cart, rows.Err()
}

func (r *CartRepo) GetOrCreate(ctx context.Context, customerID string) (domain.Cart, error) {
	// 1) Try get
	cart, err := r.Get(ctx, customerID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return domain.Cart{}, err
	}

	// 2) Not found => try create
	_, createErr := r.pool.Exec(ctx, `INSERT INTO carts (customer_id) VALUES ($1)`, customerID)
	if createErr == nil {
		return r.Get(ctx, customerID)
	}

	// 3) If someone else created concurrently => re-get
	if postgres.IsUniqueViolation(createErr) {
		return r.Get(ctx, customerID)
	}

	return domain.Cart{}, fmt.Errorf("create cart: %w", createErr)
}

func (r *CartRepo) AddItem(ctx context.Context, cartID string, item domain.CartItem) (domain.CartItem, error) {
	// The unique index on (cart_id, product_id, COALESCE(variant_id, nil uuid))
	// turns a concurrent duplicate add into an increment.
	err := r.pool.QueryRow(ctx, `
		WITH touched AS (
			UPDATE carts SET updated_at = now() WHERE id = $1
		)
		INSERT INTO cart_items (cart_id, product_id, variant_id, quantity)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4)
		ON CONFLICT (cart_id, product_id, (COALESCE(variant_id, '00000000-0000-0000-0000-000000000000'::uuid)))
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
		RETURNING id::text, cart_id::text, product_id::text, COALESCE(variant_id::text, ''), quantity, created_at, updated_at`,
		cartID, item.ProductID, item.VariantID, item.Quantity).
		Scan(&item.ID, &item.CartID, &item.ProductID, &item.VariantID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return domain.CartItem{}, fmt.Errorf("upsert cart item: %w", err)
	}
	return item, nil
}

func (r *CartRepo) SetItemQuantity(ctx context.Context, customerID, itemID string, quantity int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE cart_items ci SET quantity = $3, updated_at = now()
		FROM carts c
		WHERE ci.cart_id = c.id AND c.customer_id = $1 AND ci.id::text = $2`,
		customerID, itemID, quantity)
	if err != nil {
		return fmt.Errorf("set item quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("cart item", itemID)
	}
	return nil
}

func (r *CartRepo) RemoveItems(ctx context.Context, customerID string, itemIDs []string) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM cart_items ci
		USING carts c
		WHERE ci.cart_id = c.id AND c.customer_id = $1 AND ci.id::text = ANY($2)`,
		customerID, itemIDs)
	if err != nil {
		return 0, fmt.Errorf("remove cart items: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
