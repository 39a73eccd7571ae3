package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/shoping-market/internal/apperr"
	catalogmem "github.com/dwikikusuma/shoping-market/internal/catalog/infra/memory"
	"github.com/dwikikusuma/shoping-market/internal/order/app"
	"github.com/dwikikusuma/shoping-market/internal/order/domain"
	"github.com/dwikikusuma/shoping-market/pkg/outbox"
)

// OrderRepo keeps orders in memory. Stock lives in the shared ProductStore,
// whose DecrementAll applies a whole batch or nothing.
type OrderRepo struct {
	mu        sync.Mutex
	stock     *catalogmem.ProductStore
	outbox    *outbox.MemoryStore
	orders    map[string]domain.Order
	itemOrder map[string]string
	metrics   map[string]domain.SellerMetrics
}

func NewOrderRepo(stock *catalogmem.ProductStore, ob *outbox.MemoryStore) *OrderRepo {
	return &OrderRepo{
		stock:     stock,
		outbox:    ob,
		orders:    make(map[string]domain.Order),
		itemOrder: make(map[string]string),
		metrics:   make(map[string]domain.SellerMetrics),
	}
}

var _ app.OrderRepo = (*OrderRepo)(nil)

func (r *OrderRepo) CreateOrderTx(_ context.Context, order domain.Order, events []domain.Event) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var reqs []catalogmem.StockDecrement
	var lines []domain.Item
	for _, it := range order.Items {
		if it.VariantID == "" {
			continue
		}
		reqs = append(reqs, catalogmem.StockDecrement{ProductID: it.ProductID, VariantID: it.VariantID, Quantity: it.Quantity})
		lines = append(lines, it)
	}
	if failed, ok := r.stock.DecrementAll(reqs); !ok {
		it := lines[failed]
		available := -1
		if n, found := r.stock.Stock(it.VariantID); found {
			available = n
		}
		return domain.Order{}, &apperr.StockError{
			ProductID: it.ProductID, ProductName: it.ProductName,
			VariantID: it.VariantID, VariantName: it.VariantName,
			Requested: it.Quantity, Available: available,
		}
	}

	r.orders[order.ID] = clone(order)
	for _, it := range order.Items {
		r.itemOrder[it.ID] = order.ID
	}
	r.record(events)
	return clone(order), nil
}

func (r *OrderRepo) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, apperr.NotFound("order", id)
	}
	return clone(o), nil
}

func (r *OrderRepo) OrderIDForItem(_ context.Context, itemID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.itemOrder[itemID]
	if !ok {
		return "", apperr.NotFound("order item", itemID)
	}
	return id, nil
}

func (r *OrderRepo) List(_ context.Context, f app.ListFilter) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []domain.Order{}
	for _, o := range r.orders {
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		if f.SellerID != "" && !o.HasSeller(f.SellerID) {
			continue
		}
		out = append(out, clone(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *OrderRepo) Update(_ context.Context, orderID string, m app.Mutation) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, apperr.NotFound("order", orderID)
	}
	prev := make(map[string]domain.ItemStatus, len(cur.Items))
	for _, it := range cur.Items {
		prev[it.ID] = it.Status
	}

	next := clone(cur)
	events, err := m(&next)
	if err != nil {
		return domain.Order{}, err
	}
	if len(events) == 0 {
		return clone(cur), nil
	}

	for _, it := range next.Items {
		if it.Status == domain.ItemDelivered && prev[it.ID] != domain.ItemDelivered {
			sm := r.metrics[it.SellerID]
			if sm.SellerID == "" {
				sm = domain.SellerMetrics{SellerID: it.SellerID, TotalSales: decimal.Zero}
			}
			sm.TotalSales = sm.TotalSales.Add(it.Total())
			sm.TotalOrders++
			r.metrics[it.SellerID] = sm
		}
	}

	r.orders[orderID] = next
	r.record(events)
	return clone(next), nil
}

func (r *OrderRepo) AnonymizeCustomer(_ context.Context, customerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, o := range r.orders {
		if o.CustomerID != customerID {
			continue
		}
		o.Lines = append([]domain.LineSnapshot(nil), domain.AnonymizedLines...)
		r.orders[id] = o
		n++
	}
	if n > 0 {
		r.record([]domain.Event{{Type: domain.EventCustomerAnonymized, CustomerID: customerID}})
	}
	return n, nil
}

func (r *OrderRepo) SellerMetrics(_ context.Context, sellerID string) (domain.SellerMetrics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sm, ok := r.metrics[sellerID]
	if !ok {
		return domain.SellerMetrics{SellerID: sellerID, TotalSales: decimal.Zero}, nil
	}
	return sm, nil
}

func (r *OrderRepo) record(events []domain.Event) {
	if r.outbox == nil {
		return
	}
	for _, ev := range events {
		key := ev.OrderID
		if key == "" {
			key = ev.CustomerID
		}
		// payload is a plain struct; marshalling cannot fail
		_ = r.outbox.Append(ev.Type, key, ev)
	}
}

func clone(o domain.Order) domain.Order {
	o.Lines = append([]domain.LineSnapshot(nil), o.Lines...)
	o.Items = append([]domain.Item(nil), o.Items...)
	return o
}
