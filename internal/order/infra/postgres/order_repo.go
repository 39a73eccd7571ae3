package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/shoping-market/internal/apperr"
	"github.com/dwikikusuma/shoping-market/internal/order/app"
	"github.com/dwikikusuma/shoping-market/internal/order/domain"
	"github.com/dwikikusuma/shoping-market/pkg/outbox"
	"github.com/dwikikusuma/shoping-market/pkg/postgres"
)

type OrderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

var _ app.OrderRepo = (*OrderRepo)(nil)

const orderColumns = `id::text, customer_id, seller_id, lines, total_amount::text, discount::text, status,
	tracking_number, courier, payment_id, payment_method, shipped_at, delivered_at, created_at, updated_at`

const itemColumns = `id::text, order_id::text, seller_id, product_id::text, COALESCE(variant_id::text, ''),
	product_name, variant_name, quantity, unit_price::text, status, tracking_number, shipping_provider,
	shipped_at, delivered_at`

func (r *OrderRepo) CreateOrderTx(ctx context.Context, order domain.Order, events []domain.Event) (domain.Order, error) {
	lines, err := json.Marshal(order.Lines)
	if err != nil {
		return domain.Order{}, fmt.Errorf("marshal lines: %w", err)
	}

	err = postgres.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, it := range stockLines(order.Items) {
			if err := decrementStock(ctx, tx, it); err != nil {
				return err
			}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO orders (id, customer_id, seller_id, lines, total_amount, discount, status,
				tracking_number, courier, payment_id, payment_method, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, '', '', $8, $9, $10, $10)`,
			order.ID, order.CustomerID, order.SellerID, lines,
			order.TotalAmount.String(), order.Discount.String(), string(order.Status),
			order.PaymentID, order.PaymentMethod, order.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for i, it := range order.Items {
			_, err := tx.Exec(ctx, `
				INSERT INTO order_items (id, order_id, seller_id, product_id, variant_id, product_name,
					variant_name, quantity, unit_price, status, tracking_number, shipping_provider)
				VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid, $6, $7, $8, $9::numeric, $10, '', '')`,
				it.ID, order.ID, it.SellerID, it.ProductID, it.VariantID, it.ProductName,
				it.VariantName, it.Quantity, it.UnitPrice.String(), string(it.Status))
			if err != nil {
				return fmt.Errorf("insert item %d: %w", i, err)
			}
		}

		return writeEvents(ctx, tx, events)
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// stockLines returns the variant lines ordered by variant id so concurrent
// orders lock rows in the same order.
func stockLines(items []domain.Item) []domain.Item {
	out := make([]domain.Item, 0, len(items))
	for _, it := range items {
		if it.VariantID != "" {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].VariantID < out[j].VariantID })
	return out
}

// decrementStock is the stock ledger primitive: one conditional UPDATE, so
// concurrent orders can never take the same unit twice.
func decrementStock(ctx context.Context, tx pgx.Tx, it domain.Item) error {
	tag, err := tx.Exec(ctx, `
		UPDATE product_variants SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`, it.VariantID, it.Quantity)
	if err != nil {
		return fmt.Errorf("decrement stock %s: %w", it.VariantID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	available := -1
	if err := tx.QueryRow(ctx, `SELECT stock FROM product_variants WHERE id = $1`, it.VariantID).Scan(&available); err != nil {
		available = -1
	}
	return &apperr.StockError{
		ProductID: it.ProductID, ProductName: it.ProductName,
		VariantID: it.VariantID, VariantName: it.VariantName,
		Requested: it.Quantity, Available: available,
	}
}

func (r *OrderRepo) Get(ctx context.Context, id string) (domain.Order, error) {
	if uuid.Validate(id) != nil {
		return domain.Order{}, apperr.NotFound("order", id)
	}
	return getOrder(ctx, r.pool, id, false)
}

func getOrder(ctx context.Context, db postgres.DBTX, id string, forUpdate bool) (domain.Order, error) {
	lock := ""
	if forUpdate {
		lock = " FOR UPDATE"
	}

	o, err := scanOrder(db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`+lock, id))
	if postgres.IsNoRows(err) {
		return domain.Order{}, apperr.NotFound("order", id)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}

	items, err := listItems(ctx, db, []string{id}, forUpdate)
	if err != nil {
		return domain.Order{}, err
	}
	o.Items = items[id]
	return o, nil
}

func (r *OrderRepo) OrderIDForItem(ctx context.Context, itemID string) (string, error) {
	if uuid.Validate(itemID) != nil {
		return "", apperr.NotFound("order item", itemID)
	}
	var orderID string
	err := r.pool.QueryRow(ctx, `SELECT order_id::text FROM order_items WHERE id = $1`, itemID).Scan(&orderID)
	if postgres.IsNoRows(err) {
		return "", apperr.NotFound("order item", itemID)
	}
	if err != nil {
		return "", fmt.Errorf("find item order: %w", err)
	}
	return orderID, nil
}

func (r *OrderRepo) List(ctx context.Context, f app.ListFilter) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders o
		WHERE ($1 = '' OR o.customer_id = $1)
		  AND ($2 = '' OR o.seller_id = $2 OR EXISTS (
			SELECT 1 FROM order_items oi WHERE oi.order_id = o.id AND oi.seller_id = $2))
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $3`, f.CustomerID, f.SellerID, f.Limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	items, err := listItems(ctx, r.pool, ids, false)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (r *OrderRepo) Update(ctx context.Context, orderID string, m app.Mutation) (domain.Order, error) {
	if uuid.Validate(orderID) != nil {
		return domain.Order{}, apperr.NotFound("order", orderID)
	}

	var out domain.Order
	err := postgres.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		cur, err := getOrder(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		prev := make(map[string]domain.ItemStatus, len(cur.Items))
		for _, it := range cur.Items {
			prev[it.ID] = it.Status
		}

		next := cur
		next.Items = append([]domain.Item(nil), cur.Items...)
		events, err := m(&next)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			out = cur
			return nil
		}

		_, err = tx.Exec(ctx, `
			UPDATE orders SET status = $2, tracking_number = $3, courier = $4,
				shipped_at = $5, delivered_at = $6, updated_at = $7
			WHERE id = $1`,
			next.ID, string(next.Status), next.TrackingNumber, next.Courier,
			next.ShippedAt, next.DeliveredAt, next.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		for _, it := range next.Items {
			if it.Status == domain.ItemDelivered && prev[it.ID] != domain.ItemDelivered {
				if err := deliverItem(ctx, tx, it); err != nil {
					return err
				}
				continue
			}
			if err := updateItem(ctx, tx, it); err != nil {
				return err
			}
		}

		if err := writeEvents(ctx, tx, events); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return out, nil
}

func updateItem(ctx context.Context, tx pgx.Tx, it domain.Item) error {
	_, err := tx.Exec(ctx, `
		UPDATE order_items SET status = $2, tracking_number = $3, shipping_provider = $4,
			shipped_at = $5, delivered_at = $6
		WHERE id = $1`,
		it.ID, string(it.Status), it.TrackingNumber, it.ShippingProvider, it.ShippedAt, it.DeliveredAt)
	if err != nil {
		return fmt.Errorf("update item %s: %w", it.ID, err)
	}
	return nil
}

// deliverItem moves an item into delivered and, only when that UPDATE
// actually changed the row, credits the seller.
func deliverItem(ctx context.Context, tx pgx.Tx, it domain.Item) error {
	tag, err := tx.Exec(ctx, `
		UPDATE order_items SET status = 'delivered', tracking_number = $2, shipping_provider = $3,
			shipped_at = $4, delivered_at = $5
		WHERE id = $1 AND status <> 'delivered'`,
		it.ID, it.TrackingNumber, it.ShippingProvider, it.ShippedAt, it.DeliveredAt)
	if err != nil {
		return fmt.Errorf("deliver item %s: %w", it.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO seller_metrics (seller_id, total_sales, total_orders)
		VALUES ($1, $2::numeric, 1)
		ON CONFLICT (seller_id) DO UPDATE
		SET total_sales = seller_metrics.total_sales + EXCLUDED.total_sales,
			total_orders = seller_metrics.total_orders + 1,
			updated_at = now()`,
		it.SellerID, it.Total().String())
	if err != nil {
		return fmt.Errorf("increment seller metrics: %w", err)
	}
	return nil
}

func (r *OrderRepo) AnonymizeCustomer(ctx context.Context, customerID string) (int, error) {
	placeholder, err := json.Marshal(domain.AnonymizedLines)
	if err != nil {
		return 0, err
	}

	var n int
	err = postgres.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE orders SET lines = $2, updated_at = now() WHERE customer_id = $1`, customerID, placeholder)
		if err != nil {
			return fmt.Errorf("anonymize orders: %w", err)
		}
		n = int(tag.RowsAffected())
		if n == 0 {
			return nil
		}
		return writeEvents(ctx, tx, []domain.Event{{Type: domain.EventCustomerAnonymized, CustomerID: customerID}})
	})
	return n, err
}

func (r *OrderRepo) SellerMetrics(ctx context.Context, sellerID string) (domain.SellerMetrics, error) {
	sm := domain.SellerMetrics{SellerID: sellerID, TotalSales: decimal.Zero}
	var sales string
	err := r.pool.QueryRow(ctx,
		`SELECT total_sales::text, total_orders FROM seller_metrics WHERE seller_id = $1`, sellerID).
		Scan(&sales, &sm.TotalOrders)
	if postgres.IsNoRows(err) {
		return sm, nil
	}
	if err != nil {
		return sm, fmt.Errorf("get seller metrics: %w", err)
	}
	if sm.TotalSales, err = decimal.NewFromString(sales); err != nil {
		return sm, fmt.Errorf("parse total sales: %w", err)
	}
	return sm, nil
}

func writeEvents(ctx context.Context, tx pgx.Tx, events []domain.Event) error {
	for _, ev := range events {
		key := ev.OrderID
		if key == "" {
			key = ev.CustomerID
		}
		if err := outbox.Insert(ctx, tx, ev.Type, key, ev); err != nil {
			return err
		}
	}
	return nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o               domain.Order
		lines           []byte
		total, discount string
		status          string
	)
	err := row.Scan(&o.ID, &o.CustomerID, &o.SellerID, &lines, &total, &discount, &status,
		&o.TrackingNumber, &o.Courier, &o.PaymentID, &o.PaymentMethod,
		&o.ShippedAt, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.Status(status)
	if err := json.Unmarshal(lines, &o.Lines); err != nil {
		return domain.Order{}, fmt.Errorf("decode lines of %s: %w", o.ID, err)
	}
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return domain.Order{}, fmt.Errorf("parse total of %s: %w", o.ID, err)
	}
	if o.Discount, err = decimal.NewFromString(discount); err != nil {
		return domain.Order{}, fmt.Errorf("parse discount of %s: %w", o.ID, err)
	}
	return o, nil
}

func listItems(ctx context.Context, db postgres.DBTX, orderIDs []string, forUpdate bool) (map[string][]domain.Item, error) {
	lock := ""
	if forUpdate {
		lock = " FOR UPDATE"
	}
	rows, err := db.Query(ctx, `
		SELECT `+itemColumns+` FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, id`+lock, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Item, len(orderIDs))
	for rows.Next() {
		var (
			it     domain.Item
			price  string
			status string
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.SellerID, &it.ProductID, &it.VariantID,
			&it.ProductName, &it.VariantName, &it.Quantity, &price, &status,
			&it.TrackingNumber, &it.ShippingProvider, &it.ShippedAt, &it.DeliveredAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		it.Status = domain.ItemStatus(status)
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse unit price of %s: %w", it.ID, err)
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}
