//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dwikikusuma/shoping-market/internal/apperr"
	"github.com/dwikikusuma/shoping-market/internal/order/domain"
	orderpg "github.com/dwikikusuma/shoping-market/internal/order/infra/postgres"
	"github.com/dwikikusuma/shoping-market/pkg/postgres/pgtest"
)

type variantRow struct {
	productID string
	variantID string
	sellerID  string
}

func seedVariant(t *testing.T, pool *pgxpool.Pool, sellerID string, stock int) variantRow {
	t.Helper()
	ctx := context.Background()
	v := variantRow{productID: uuid.NewString(), variantID: uuid.NewString(), sellerID: sellerID}
	_, err := pool.Exec(ctx,
		`INSERT INTO products (id, seller_id, name, base_price) VALUES ($1, $2, 'Mug', 100)`,
		v.productID, sellerID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx,
		`INSERT INTO product_variants (id, product_id, name, stock) VALUES ($1, $2, 'Standard', $3)`,
		v.variantID, v.productID, stock)
	require.NoError(t, err)
	return v
}

func stockOf(t *testing.T, pool *pgxpool.Pool, variantID string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT stock FROM product_variants WHERE id = $1`, variantID).Scan(&n))
	return n
}

func newOrder(lines ...domain.LineSnapshot) domain.Order {
	o := domain.NewOrder("cust-1", "CARD_ref", "CARD", lines)
	now := time.Now().UTC().Truncate(time.Microsecond)
	o.ID = uuid.NewString()
	o.CreatedAt, o.UpdatedAt = now, now
	for i := range o.Items {
		o.Items[i].ID = uuid.NewString()
		o.Items[i].OrderID = o.ID
	}
	return o
}

func line(v variantRow, qty int) domain.LineSnapshot {
	return domain.LineSnapshot{
		ProductID: v.productID, VariantID: v.variantID,
		ProductName: "Mug", VariantName: "Standard", SellerID: v.sellerID,
		UnitPrice: decimal.RequireFromString("100"), Quantity: qty,
	}
}

func TestCreateOrderTx_ConcurrentOrdersNeverOversell(t *testing.T) {
	pool := pgtest.Open(t)
	repo := orderpg.NewOrderRepo(pool)
	mug := seedVariant(t, pool, "s-1", 3)

	var g errgroup.Group
	errs := make([]error, 2)
	for i := range errs {
		i := i
		g.Go(func() error {
			_, errs[i] = repo.CreateOrderTx(context.Background(), newOrder(line(mug, 2)), nil)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrInsufficientStock):
			short++
			var se *apperr.StockError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, 2, se.Requested)
			assert.Equal(t, 1, se.Available)
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	assert.Equal(t, 1, stockOf(t, pool, mug.variantID))
}

func TestCreateOrderTx_ShortLineWritesNothing(t *testing.T) {
	pool := pgtest.Open(t)
	repo := orderpg.NewOrderRepo(pool)
	mug := seedVariant(t, pool, "s-1", 5)
	hat := seedVariant(t, pool, "s-1", 1)

	o := newOrder(line(mug, 2), line(hat, 3))
	_, err := repo.CreateOrderTx(context.Background(), o, []domain.Event{{Type: domain.EventOrderCreated, OrderID: o.ID}})
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)

	assert.Equal(t, 5, stockOf(t, pool, mug.variantID))
	assert.Equal(t, 1, stockOf(t, pool, hat.variantID))
	_, err = repo.Get(context.Background(), o.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	var events int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT count(*) FROM outbox`).Scan(&events))
	assert.Zero(t, events)
}

func TestCreateOrderTx_MixedSellersStoreNoSeller(t *testing.T) {
	pool := pgtest.Open(t)
	repo := orderpg.NewOrderRepo(pool)
	a := seedVariant(t, pool, "s-a", 5)
	b := seedVariant(t, pool, "s-b", 5)

	o := newOrder(line(a, 1), line(b, 1))
	require.Nil(t, o.SellerID)
	_, err := repo.CreateOrderTx(context.Background(), o, nil)
	require.NoError(t, err)

	got, err := repo.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Nil(t, got.SellerID)
	assert.Len(t, got.Items, 2)
	assert.True(t, got.HasSeller("s-b"))
}

func TestUpdate_DeliveryCreditsSellerOnce(t *testing.T) {
	pool := pgtest.Open(t)
	repo := orderpg.NewOrderRepo(pool)
	mug := seedVariant(t, pool, "s-1", 5)

	o := newOrder(line(mug, 2))
	_, err := repo.CreateOrderTx(context.Background(), o, nil)
	require.NoError(t, err)

	deliver := func(cur *domain.Order) ([]domain.Event, error) {
		now := time.Now().UTC()
		cur.Items[0].Status = domain.ItemDelivered
		cur.Items[0].DeliveredAt = &now
		cur.UpdatedAt = now
		return []domain.Event{{Type: domain.EventItemStatusChanged, OrderID: cur.ID, ItemID: cur.Items[0].ID}}, nil
	}
	for i := 0; i < 2; i++ {
		_, err = repo.Update(context.Background(), o.ID, deliver)
		require.NoError(t, err)
	}

	sm, err := repo.SellerMetrics(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, 1, sm.TotalOrders)
	assert.Equal(t, "200.00", sm.TotalSales.StringFixed(2))
}
