package app_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dwikikusuma/shoping-market/internal/apperr"
	cartapp "github.com/dwikikusuma/shoping-market/internal/cart/app"
	cartdomain "github.com/dwikikusuma/shoping-market/internal/cart/domain"
	cartmem "github.com/dwikikusuma/shoping-market/internal/cart/infra/memory"
	catalogapp "github.com/dwikikusuma/shoping-market/internal/catalog/app"
	catalogdomain "github.com/dwikikusuma/shoping-market/internal/catalog/domain"
	catalogmem "github.com/dwikikusuma/shoping-market/internal/catalog/infra/memory"
	"github.com/dwikikusuma/shoping-market/internal/order/app"
	"github.com/dwikikusuma/shoping-market/internal/order/domain"
	ordermem "github.com/dwikikusuma/shoping-market/internal/order/infra/memory"
	"github.com/dwikikusuma/shoping-market/internal/payment"
	"github.com/dwikikusuma/shoping-market/pkg/logger"
	"github.com/dwikikusuma/shoping-market/pkg/notify"
	"github.com/dwikikusuma/shoping-market/pkg/outbox"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (n *recordingNotifier) Fire(msg notify.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *recordingNotifier) subjects() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, m := range n.msgs {
		out = append(out, m.Subject)
	}
	return out
}

type countingRefunder struct{ calls atomic.Int32 }

func (r *countingRefunder) Refund(_ context.Context, ref string, _ decimal.Decimal) payment.Result {
	r.calls.Add(1)
	return payment.Result{Success: true, Reference: "REFUND_" + ref}
}

type fixture struct {
	svc      *app.Service
	cart     *cartapp.Service
	products *catalogmem.ProductStore
	events   *outbox.MemoryStore
	notes    *recordingNotifier
	refunds  *countingRefunder
}

var (
	admin   = domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}
	sellerA = domain.Actor{UserID: "seller-user-a", Role: domain.RoleSeller, SellerID: "s-a"}
	sellerB = domain.Actor{UserID: "seller-user-b", Role: domain.RoleSeller, SellerID: "s-b"}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	products := catalogmem.NewProductStore()
	products.Put(catalogdomain.Product{
		ID: "p-shirt", SellerID: "s-a", Name: "Shirt",
		BasePrice: decimal.RequireFromString("100"),
		Variants: []catalogdomain.Variant{
			{ID: "v-m", ProductID: "p-shirt", Name: "M", Stock: 3},
			{ID: "v-l", ProductID: "p-shirt", Name: "L", Stock: 1},
		},
	})
	products.Put(catalogdomain.Product{
		ID: "p-cap", SellerID: "s-b", Name: "Cap",
		BasePrice: decimal.RequireFromString("40"),
		Variants: []catalogdomain.Variant{
			{ID: "v-cap", ProductID: "p-cap", Name: "One size", Stock: 10},
		},
	})

	log := logger.Nop()
	cart := cartapp.NewService(cartmem.NewCartRepo(), catalogapp.NewService(products), log)
	events := outbox.NewMemoryStore()
	notes := &recordingNotifier{}
	refunds := &countingRefunder{}
	svc := app.NewService(ordermem.NewOrderRepo(products, events), cart, notes, refunds, log)
	return &fixture{svc: svc, cart: cart, products: products, events: events, notes: notes, refunds: refunds}
}

// add puts an item in the customer's cart and returns its locked line.
func (f *fixture) add(t *testing.T, customerID, productID, variant string, qty int) domain.LineSnapshot {
	t.Helper()
	item, err := f.cart.AddItem(context.Background(), customerID, productID, qty, variant)
	require.NoError(t, err)
	cart, err := f.cart.GetCart(context.Background(), customerID)
	require.NoError(t, err)
	var resolved cartdomain.CartItem
	for _, it := range cart.Items {
		if it.ID == item.ID {
			resolved = it
		}
	}
	return domain.LineSnapshot{
		CartItemID:  resolved.ID,
		ProductID:   resolved.ProductID,
		VariantID:   resolved.VariantID,
		ProductName: resolved.ProductName,
		VariantName: resolved.VariantName,
		SellerID:    resolved.SellerID,
		UnitPrice:   resolved.UnitPrice,
		Quantity:    resolved.Quantity,
	}
}

func (f *fixture) order(t *testing.T, customerID string, lines ...domain.LineSnapshot) (domain.Order, error) {
	t.Helper()
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.CartItemID
	}
	return f.svc.CreateOrder(context.Background(), app.CreateOrderInput{
		CustomerID:    customerID,
		CartItemIDs:   ids,
		Lines:         lines,
		PaymentID:     "CARD_test",
		PaymentMethod: "CARD",
	})
}

func (f *fixture) stock(t *testing.T, variantID string) int {
	t.Helper()
	n, ok := f.products.Stock(variantID)
	require.True(t, ok)
	return n
}

func TestCreateOrder_DecrementsStockAndClearsSelectedItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	shirt := f.add(t, "c-1", "p-shirt", "M", 2)
	capLine := f.add(t, "c-1", "p-cap", "One size", 1)

	o, err := f.order(t, "c-1", shirt)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, o.Status)
	assert.Equal(t, "200.00", o.TotalAmount.StringFixed(2))
	require.Len(t, o.Items, 1)
	assert.Equal(t, domain.ItemPaid, o.Items[0].Status)
	assert.Equal(t, 1, f.stock(t, "v-m"))

	cart, err := f.cart.GetCart(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, capLine.CartItemID, cart.Items[0].ID)

	recs := f.events.All()
	require.Len(t, recs, 1)
	assert.Equal(t, domain.EventOrderCreated, recs[0].Type)
	assert.Equal(t, o.ID, recs[0].Key)
}

func TestCreateOrder_NoResolvableItems(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), app.CreateOrderInput{
		CustomerID:  "c-1",
		CartItemIDs: []string{"missing"},
		Lines:       []domain.LineSnapshot{{CartItemID: "missing", ProductID: "p-shirt", Quantity: 1}},
	})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestCreateOrder_AtomicBatch(t *testing.T) {
	f := newFixture(t)

	m := f.add(t, "c-1", "p-shirt", "M", 2)
	l := f.add(t, "c-1", "p-shirt", "L", 1)
	// L sells out to somebody else before this checkout completes
	f.products.SetStock("p-shirt", "v-l", 0)

	_, err := f.order(t, "c-1", m, l)

	var stockErr *apperr.StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "v-l", stockErr.VariantID)
	assert.Equal(t, "L", stockErr.VariantName)
	assert.Equal(t, 3, f.stock(t, "v-m"), "no partial decrement may survive")
	assert.Empty(t, f.events.All())

	orders, err := f.svc.ListOrders(context.Background(), admin, 0)
	require.NoError(t, err)
	assert.Empty(t, orders)

	cart, err := f.cart.GetCart(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2, "cart stays intact on failure")
}

func TestCreateOrder_ConcurrentCheckoutsDoNotOversell(t *testing.T) {
	f := newFixture(t)

	lineA := f.add(t, "c-a", "p-shirt", "M", 2)
	lineB := f.add(t, "c-b", "p-shirt", "M", 2)

	var succeeded, outOfStock atomic.Int32
	var g errgroup.Group
	for _, tc := range []struct {
		customer string
		line     domain.LineSnapshot
	}{{"c-a", lineA}, {"c-b", lineB}} {
		tc := tc
		g.Go(func() error {
			_, err := f.order(t, tc.customer, tc.line)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, apperr.ErrInsufficientStock):
				outOfStock.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 1, succeeded.Load())
	assert.EqualValues(t, 1, outOfStock.Load())
	assert.Equal(t, 1, f.stock(t, "v-m"))
}

func TestCreateOrder_ManyConcurrentBuyersNeverExceedStock(t *testing.T) {
	f := newFixture(t)
	f.products.SetStock("p-cap", "v-cap", 7)

	const buyers = 20
	lines := make([]domain.LineSnapshot, buyers)
	for i := range lines {
		lines[i] = f.add(t, customer(i), "p-cap", "One size", 1)
	}

	var sold atomic.Int32
	var g errgroup.Group
	for i := range lines {
		i := i
		g.Go(func() error {
			_, err := f.order(t, customer(i), lines[i])
			if err == nil {
				sold.Add(1)
				return nil
			}
			if errors.Is(err, apperr.ErrInsufficientStock) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 7, sold.Load())
	assert.Equal(t, 0, f.stock(t, "v-cap"))
}

func customer(i int) string {
	return "buyer-" + string(rune('a'+i))
}

func TestUpdateItemStatus_DeliveredCountsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.order(t, "c-1", f.add(t, "c-1", "p-shirt", "M", 2))
	require.NoError(t, err)
	itemID := o.Items[0].ID

	it, err := f.svc.UpdateItemStatus(ctx, sellerA, app.ItemStatusUpdate{ItemID: itemID, Status: "shipped", TrackingNumber: "TRK1", ShippingProvider: "LBC"})
	require.NoError(t, err)
	assert.NotNil(t, it.ShippedAt)
	assert.Equal(t, "TRK1", it.TrackingNumber)

	for i := 0; i < 2; i++ {
		it, err = f.svc.UpdateItemStatus(ctx, sellerA, app.ItemStatusUpdate{ItemID: itemID, Status: "delivered"})
		require.NoError(t, err)
		assert.NotNil(t, it.DeliveredAt)
	}

	sm, err := f.svc.SellerMetrics(ctx, sellerA, "s-a")
	require.NoError(t, err)
	assert.Equal(t, 1, sm.TotalOrders)
	assert.Equal(t, "200.00", sm.TotalSales.StringFixed(2))

	assert.Equal(t, []string{"Order placed", "Your item has shipped", "Your item was delivered"}, f.notes.subjects())
}

func TestUpdateItemStatus_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.order(t, "c-1", f.add(t, "c-1", "p-shirt", "M", 1))
	require.NoError(t, err)
	itemID := o.Items[0].ID

	_, err = f.svc.UpdateItemStatus(ctx, sellerB, app.ItemStatusUpdate{ItemID: itemID, Status: "shipped"})
	require.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.UpdateItemStatus(ctx, domain.Actor{UserID: "c-1", Role: domain.RoleCustomer}, app.ItemStatusUpdate{ItemID: itemID, Status: "delivered"})
	require.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.UpdateItemStatus(ctx, sellerA, app.ItemStatusUpdate{ItemID: "missing", Status: "shipped"})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.UpdateItemStatus(ctx, sellerA, app.ItemStatusUpdate{ItemID: itemID, Status: "teleported"})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = f.svc.UpdateItemStatus(ctx, admin, app.ItemStatusUpdate{ItemID: itemID, Status: "shipped"})
	require.NoError(t, err)
	_, err = f.svc.UpdateItemStatus(ctx, admin, app.ItemStatusUpdate{ItemID: itemID, Status: "preparing"})
	require.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestShipOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.order(t, "c-1",
		f.add(t, "c-1", "p-shirt", "M", 1),
		f.add(t, "c-1", "p-shirt", "L", 1))
	require.NoError(t, err)

	_, err = f.svc.ShipOrder(ctx, sellerA, o.ID, "  ", "J&T")
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = f.svc.ShipOrder(ctx, sellerB, o.ID, "TRK9", "J&T")
	require.ErrorIs(t, err, apperr.ErrForbidden)

	shipped, err := f.svc.ShipOrder(ctx, sellerA, o.ID, "TRK9", "J&T")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipped, shipped.Status)
	assert.NotNil(t, shipped.ShippedAt)
	for _, it := range shipped.Items {
		assert.Equal(t, domain.ItemShipped, it.Status)
		assert.Equal(t, "TRK9", it.TrackingNumber)
		assert.Equal(t, "J&T", it.ShippingProvider)
	}

	_, err = f.svc.ShipOrder(ctx, sellerA, o.ID, "TRK10", "J&T")
	require.ErrorIs(t, err, apperr.ErrInvalidState, "already shipped")
}

func TestShipOrder_RejectsCancelledAndDelivered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := domain.Actor{UserID: "c-1", Role: domain.RoleCustomer}

	cancelled, err := f.order(t, "c-1", f.add(t, "c-1", "p-shirt", "M", 1))
	require.NoError(t, err)
	_, err = f.svc.TransitionOrder(ctx, buyer, cancelled.ID, "CANCELLED")
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.refunds.calls.Load())

	_, err = f.svc.ShipOrder(ctx, admin, cancelled.ID, "TRK", "LBC")
	require.ErrorIs(t, err, apperr.ErrInvalidState)

	delivered, err := f.order(t, "c-1", f.add(t, "c-1", "p-shirt", "L", 1))
	require.NoError(t, err)
	_, err = f.svc.ShipOrder(ctx, admin, delivered.ID, "TRK", "LBC")
	require.NoError(t, err)
	_, err = f.svc.TransitionOrder(ctx, admin, delivered.ID, "DELIVERED")
	require.NoError(t, err)

	_, err = f.svc.ShipOrder(ctx, admin, delivered.ID, "TRK2", "LBC")
	require.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestTransitionOrder_DeliveredCreditsSellerOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.order(t, "c-1", f.add(t, "c-1", "p-cap", "One size", 3))
	require.NoError(t, err)
	itemID := o.Items[0].ID

	_, err = f.svc.ShipOrder(ctx, sellerB, o.ID, "TRK", "LBC")
	require.NoError(t, err)
	_, err = f.svc.UpdateItemStatus(ctx, sellerB, app.ItemStatusUpdate{ItemID: itemID, Status: "delivered"})
	require.NoError(t, err)

	delivered, err := f.svc.TransitionOrder(ctx, sellerB, o.ID, "DELIVERED")
	require.NoError(t, err)
	assert.NotNil(t, delivered.DeliveredAt)

	sm, err := f.svc.SellerMetrics(ctx, admin, "s-b")
	require.NoError(t, err)
	assert.Equal(t, 1, sm.TotalOrders)
	assert.Equal(t, "120.00", sm.TotalSales.StringFixed(2))
}

func TestTransitionOrder_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.order(t, "c-1", f.add(t, "c-1", "p-shirt", "M", 1))
	require.NoError(t, err)

	_, err = f.svc.TransitionOrder(ctx, domain.Actor{UserID: "c-2", Role: domain.RoleCustomer}, o.ID, "CANCELLED")
	require.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.TransitionOrder(ctx, domain.Actor{UserID: "c-1", Role: domain.RoleCustomer}, o.ID, "PROCESSING")
	require.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.TransitionOrder(ctx, sellerA, o.ID, "SHIPPED")
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)

	p, err := f.svc.TransitionOrder(ctx, sellerA, o.ID, "PROCESSING")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, p.Status)
}

func TestGetAndListOrders_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mine, err := f.order(t, "c-1", f.add(t, "c-1", "p-shirt", "M", 1))
	require.NoError(t, err)
	_, err = f.order(t, "c-2", f.add(t, "c-2", "p-cap", "One size", 1))
	require.NoError(t, err)

	got, err := f.svc.GetOrder(ctx, domain.Actor{UserID: "c-1", Role: domain.RoleCustomer}, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, mine.ID, got.ID)

	_, err = f.svc.GetOrder(ctx, domain.Actor{UserID: "c-2", Role: domain.RoleCustomer}, mine.ID)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.GetOrder(ctx, admin, "missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	list, err := f.svc.ListOrders(ctx, domain.Actor{UserID: "c-1", Role: domain.RoleCustomer}, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = f.svc.ListOrders(ctx, sellerB, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c-2", list[0].CustomerID)

	list, err = f.svc.ListOrders(ctx, admin, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestAnonymizeCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.order(t, "c-1", f.add(t, "c-1", "p-shirt", "M", 1))
	require.NoError(t, err)

	n, err := f.svc.AnonymizeCustomer(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.GetOrder(ctx, admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AnonymizedLines, got.Lines)
	assert.Len(t, got.Items, 1, "rows are kept")
}

func TestCreateOrder_LockedLineMissingFromCartFailsWhole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	shirt := f.add(t, "c-1", "p-shirt", "M", 1)
	capLine := f.add(t, "c-1", "p-cap", "One size", 2)
	require.NoError(t, f.cart.RemoveItem(ctx, "c-1", capLine.CartItemID))

	_, err := f.svc.CreateOrder(ctx, app.CreateOrderInput{
		CustomerID:  "c-1",
		CartItemIDs: []string{shirt.CartItemID, capLine.CartItemID},
		Lines:       []domain.LineSnapshot{shirt, capLine},
		TotalAmount: decimal.RequireFromString("180"),
		PaymentID:   "CARD_test",
	})
	require.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Contains(t, err.Error(), "Cap")

	assert.Equal(t, 3, f.stock(t, "v-m"))
	assert.Equal(t, 10, f.stock(t, "v-cap"))
	orders, err := f.svc.ListOrders(ctx, admin, 0)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCreateOrder_LockedTotalMustMatchLines(t *testing.T) {
	f := newFixture(t)

	shirt := f.add(t, "c-1", "p-shirt", "M", 1)
	_, err := f.svc.CreateOrder(context.Background(), app.CreateOrderInput{
		CustomerID:  "c-1",
		CartItemIDs: []string{shirt.CartItemID},
		Lines:       []domain.LineSnapshot{shirt},
		TotalAmount: decimal.RequireFromString("131"),
		PaymentID:   "CARD_test",
	})
	require.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Equal(t, 3, f.stock(t, "v-m"))
}

func TestCreateOrder_MixedSellersHaveNoOwningSeller(t *testing.T) {
	f := newFixture(t)

	shirt := f.add(t, "c-1", "p-shirt", "M", 1)
	capLine := f.add(t, "c-1", "p-cap", "One size", 1)

	o, err := f.order(t, "c-1", shirt, capLine)
	require.NoError(t, err)
	assert.Nil(t, o.SellerID)
	require.Len(t, o.Items, 2)
	assert.ElementsMatch(t, []string{"s-a", "s-b"}, []string{o.Items[0].SellerID, o.Items[1].SellerID})
	assert.Equal(t, "140.00", o.TotalAmount.StringFixed(2))

	_, err = f.svc.ShipOrder(context.Background(), sellerA, o.ID, "TRK-1", "LBC")
	require.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.svc.ShipOrder(context.Background(), admin, o.ID, "TRK-1", "LBC")
	require.NoError(t, err)
}
