package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/shoping-market/internal/apperr"
	"github.com/dwikikusuma/shoping-market/internal/catalog/domain"
	"github.com/dwikikusuma/shoping-market/pkg/postgres"
)

type ProductRepo struct {
	pool *pgxpool.Pool
}

func NewProductRepo(pool *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

// Numerics are read as text and parsed into decimals to avoid float
// rounding.
const productColumns = `id::text, seller_id::text, name, base_price::text, discount_percentage::text, created_at, updated_at`

func (r *ProductRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Product{}, apperr.NotFound("product", id)
	}

	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if postgres.IsNoRows(err) {
		return domain.Product{}, apperr.NotFound("product", id)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}

	variants, err := r.variants(ctx, p.ID)
	if err != nil {
		return domain.Product{}, err
	}
	p.Variants = variants
	return p, nil
}

func (r *ProductRepo) List(ctx context.Context, query string, limit int, cursor string) ([]domain.Product, string, error) {
	cursor = strings.TrimSpace(cursor)
	if cursor != "" {
		if _, err := uuid.Parse(cursor); err != nil {
			return nil, "", apperr.Invalid("bad cursor")
		}
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR id > $2::uuid)
		ORDER BY id
		LIMIT $3`, strings.TrimSpace(query), cursor, limit)
	if err != nil {
		return nil, "", fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Product, 0, limit)
	var nextCursor string
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, "", fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
		nextCursor = p.ID
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	if len(out) < limit {
		nextCursor = ""
	}
	return out, nextCursor, nil
}

func (r *ProductRepo) variants(ctx context.Context, productID string) ([]domain.Variant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, product_id::text, name, price::text, discount_percentage::text, stock
		FROM product_variants WHERE product_id = $1 ORDER BY name`, productID)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	var out []domain.Variant
	for rows.Next() {
		var (
			v               domain.Variant
			price, discount *string
		)
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Name, &price, &discount, &v.Stock); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		if v.Price, err = optionalDecimal(price); err != nil {
			return nil, err
		}
		if v.DiscountPercentage, err = optionalDecimal(discount); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (domain.Product, error) {
	var (
		p        domain.Product
		base     string
		discount *string
	)
	if err := row.Scan(&p.ID, &p.SellerID, &p.Name, &base, &discount, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Product{}, err
	}
	price, err := decimal.NewFromString(base)
	if err != nil {
		return domain.Product{}, fmt.Errorf("parse base price: %w", err)
	}
	p.BasePrice = price
	if p.DiscountPercentage, err = optionalDecimal(discount); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func optionalDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("parse decimal %q: %w", *s, err)
	}
	return &d, nil
}
