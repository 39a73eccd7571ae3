package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"google.golang.org/grpc"

	cartv1 "github.com/dwikikusuma/shoping-market/api/cart/v1"
	catalogv1 "github.com/dwikikusuma/shoping-market/api/catalog/v1"
	checkoutv1 "github.com/dwikikusuma/shoping-market/api/checkout/v1"
	orderv1 "github.com/dwikikusuma/shoping-market/api/order/v1"
	"github.com/dwikikusuma/shoping-market/internal/apperr"
	"github.com/dwikikusuma/shoping-market/pkg/authevent"
	"github.com/dwikikusuma/shoping-market/pkg/idempotency"
)

type catalogAPI interface {
	GetProduct(ctx context.Context, in *catalogv1.GetProductRequest, opts ...grpc.CallOption) (*catalogv1.Product, error)
	ListProducts(ctx context.Context, in *catalogv1.ListProductsRequest, opts ...grpc.CallOption) (*catalogv1.ListProductsResponse, error)
}

type cartAPI interface {
	GetCart(ctx context.Context, in *cartv1.CustomerID, opts ...grpc.CallOption) (*cartv1.Cart, error)
	AddItem(ctx context.Context, in *cartv1.AddItemRequest, opts ...grpc.CallOption) (*cartv1.CartItem, error)
	UpdateQuantity(ctx context.Context, in *cartv1.UpdateQuantityRequest, opts ...grpc.CallOption) (*cartv1.Empty, error)
	RemoveItem(ctx context.Context, in *cartv1.RemoveItemRequest, opts ...grpc.CallOption) (*cartv1.Empty, error)
}

type checkoutAPI interface {
	Initiate(ctx context.Context, in *checkoutv1.InitiateRequest, opts ...grpc.CallOption) (*checkoutv1.Session, error)
	GetSession(ctx context.Context, in *checkoutv1.SessionRequest, opts ...grpc.CallOption) (*checkoutv1.Session, error)
	SetShippingInfo(ctx context.Context, in *checkoutv1.SetShippingInfoRequest, opts ...grpc.CallOption) (*checkoutv1.Session, error)
	Validate(ctx context.Context, in *checkoutv1.SessionRequest, opts ...grpc.CallOption) (*checkoutv1.ValidateResponse, error)
	ProcessPayment(ctx context.Context, in *checkoutv1.ProcessPaymentRequest, opts ...grpc.CallOption) (*checkoutv1.ProcessPaymentResponse, error)
	Complete(ctx context.Context, in *checkoutv1.CompleteRequest, opts ...grpc.CallOption) (*checkoutv1.CompleteResponse, error)
	Cancel(ctx context.Context, in *checkoutv1.SessionRequest, opts ...grpc.CallOption) (*checkoutv1.Empty, error)
}

type orderAPI interface {
	GetOrder(ctx context.Context, in *orderv1.GetOrderRequest, opts ...grpc.CallOption) (*orderv1.Order, error)
	ListOrders(ctx context.Context, in *orderv1.ListOrdersRequest, opts ...grpc.CallOption) (*orderv1.ListOrdersResponse, error)
	UpdateItemStatus(ctx context.Context, in *orderv1.UpdateItemStatusRequest, opts ...grpc.CallOption) (*orderv1.OrderItem, error)
	ShipOrder(ctx context.Context, in *orderv1.ShipOrderRequest, opts ...grpc.CallOption) (*orderv1.Order, error)
	TransitionOrder(ctx context.Context, in *orderv1.TransitionOrderRequest, opts ...grpc.CallOption) (*orderv1.Order, error)
	AnonymizeCustomer(ctx context.Context, in *orderv1.AnonymizeCustomerRequest, opts ...grpc.CallOption) (*orderv1.AnonymizeCustomerResponse, error)
	GetSellerMetrics(ctx context.Context, in *orderv1.SellerMetricsRequest, opts ...grpc.CallOption) (*orderv1.SellerMetrics, error)
}

type gateway struct {
	catalog  catalogAPI
	cart     cartAPI
	checkout checkoutAPI
	orders   orderAPI
	auth     authevent.Sink
	log      *slog.Logger
}

func (g *gateway) routes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	api.Use(g.identify)

	api.HandleFunc("/products", g.listProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", g.getProduct).Methods(http.MethodGet)

	api.HandleFunc("/cart/items", g.addToCart).Methods(http.MethodPost)
	api.HandleFunc("/cart/items/{itemId}", g.updateCartItem).Methods(http.MethodPut)
	api.HandleFunc("/cart/items/{itemId}", g.removeCartItem).Methods(http.MethodDelete)
	api.HandleFunc("/cart/{customerId}", g.getCart).Methods(http.MethodGet)

	api.HandleFunc("/checkout/initiate", g.initiateCheckout).Methods(http.MethodPost)
	api.HandleFunc("/checkout/{sessionId}", g.getSession).Methods(http.MethodGet)
	api.HandleFunc("/checkout/{sessionId}/shipping", g.setShipping).Methods(http.MethodPut)
	api.HandleFunc("/checkout/{sessionId}/validate", g.validateCheckout).Methods(http.MethodPost)
	api.HandleFunc("/checkout/{sessionId}/pay", g.pay).Methods(http.MethodPost)
	api.HandleFunc("/checkout/{sessionId}/complete", g.completeCheckout).Methods(http.MethodPost)
	api.HandleFunc("/checkout/{sessionId}/cancel", g.cancelCheckout).Methods(http.MethodPost)

	api.HandleFunc("/orders", g.listOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders/items/{itemId}/status", g.updateItemStatus).Methods(http.MethodPut)
	api.HandleFunc("/orders/{id}", g.getOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/ship", g.shipOrder).Methods(http.MethodPut)
	api.HandleFunc("/orders/{id}/status", g.transitionOrder).Methods(http.MethodPut)

	api.HandleFunc("/sellers/{sellerId}/metrics", g.sellerMetrics).Methods(http.MethodGet)
	api.HandleFunc("/admin/customers/{customerId}/anonymize", g.anonymizeCustomer).Methods(http.MethodPost)
}

// Catalog

func (g *gateway) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	resp, err := g.catalog.ListProducts(r.Context(), &catalogv1.ListProductsRequest{
		Query:  q.Get("q"),
		Limit:  limit,
		Cursor: q.Get("cursor"),
	})
	g.respond(w, r, http.StatusOK, resp, err)
}

func (g *gateway) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := g.catalog.GetProduct(r.Context(), &catalogv1.GetProductRequest{ID: mux.Vars(r)["id"]})
	g.respond(w, r, http.StatusOK, p, err)
}

// Cart

type addToCartBody struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Variant   string `json:"variant,omitempty"`
}

func (g *gateway) addToCart(w http.ResponseWriter, r *http.Request) {
	var body addToCartBody
	if !g.decode(w, r, &body) {
		return
	}
	item, err := g.cart.AddItem(r.Context(), &cartv1.AddItemRequest{
		CustomerID:  actorFrom(r.Context()).UserID,
		ProductID:   body.ProductID,
		Quantity:    body.Quantity,
		VariantName: body.Variant,
	})
	g.respond(w, r, http.StatusCreated, item, err)
}

func (g *gateway) getCart(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	customerID := mux.Vars(r)["customerId"]
	if customerID != actor.UserID && actor.Role != "admin" {
		g.fail(w, r, apperr.ToStatus(apperr.Forbidden("cart belongs to another customer")))
		return
	}
	cart, err := g.cart.GetCart(r.Context(), &cartv1.CustomerID{ID: customerID})
	g.respond(w, r, http.StatusOK, cart, err)
}

func (g *gateway) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Quantity int `json:"quantity"`
	}
	if !g.decode(w, r, &body) {
		return
	}
	_, err := g.cart.UpdateQuantity(r.Context(), &cartv1.UpdateQuantityRequest{
		CustomerID: actorFrom(r.Context()).UserID,
		ItemID:     mux.Vars(r)["itemId"],
		Quantity:   body.Quantity,
	})
	g.respond(w, r, http.StatusNoContent, nil, err)
}

func (g *gateway) removeCartItem(w http.ResponseWriter, r *http.Request) {
	_, err := g.cart.RemoveItem(r.Context(), &cartv1.RemoveItemRequest{
		CustomerID: actorFrom(r.Context()).UserID,
		ItemID:     mux.Vars(r)["itemId"],
	})
	g.respond(w, r, http.StatusNoContent, nil, err)
}

// Checkout

type initiateBody struct {
	SelectedItemIDs []string `json:"selected_item_ids"`
	IdempotencyKey  string   `json:"idempotency_key,omitempty"`
}

func (g *gateway) initiateCheckout(w http.ResponseWriter, r *http.Request) {
	var body initiateBody
	if !g.decode(w, r, &body) {
		return
	}
	sess, err := g.checkout.Initiate(r.Context(), &checkoutv1.InitiateRequest{
		CustomerID:      actorFrom(r.Context()).UserID,
		SelectedItemIDs: body.SelectedItemIDs,
		IdempotencyKey:  idempotencyKey(r, body.IdempotencyKey),
	})
	g.respond(w, r, http.StatusCreated, sess, err)
}

func (g *gateway) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := g.checkout.GetSession(r.Context(), g.sessionRequest(r))
	g.respond(w, r, http.StatusOK, sess, err)
}

func (g *gateway) setShipping(w http.ResponseWriter, r *http.Request) {
	var info checkoutv1.ShippingInfo
	if !g.decode(w, r, &info) {
		return
	}
	sess, err := g.checkout.SetShippingInfo(r.Context(), &checkoutv1.SetShippingInfoRequest{
		SessionID:    mux.Vars(r)["sessionId"],
		CustomerID:   actorFrom(r.Context()).UserID,
		ShippingInfo: info,
	})
	g.respond(w, r, http.StatusOK, sess, err)
}

func (g *gateway) validateCheckout(w http.ResponseWriter, r *http.Request) {
	resp, err := g.checkout.Validate(r.Context(), g.sessionRequest(r))
	g.respond(w, r, http.StatusOK, resp, err)
}

type payBody struct {
	Method         string `json:"method"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

func (g *gateway) pay(w http.ResponseWriter, r *http.Request) {
	var body payBody
	if !g.decode(w, r, &body) {
		return
	}
	resp, err := g.checkout.ProcessPayment(r.Context(), &checkoutv1.ProcessPaymentRequest{
		SessionID:      mux.Vars(r)["sessionId"],
		CustomerID:     actorFrom(r.Context()).UserID,
		PaymentMethod:  body.Method,
		IdempotencyKey: idempotencyKey(r, body.IdempotencyKey),
	})
	g.respond(w, r, http.StatusOK, resp, err)
}

func (g *gateway) completeCheckout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PaymentID string `json:"payment_id,omitempty"`
	}
	if r.ContentLength != 0 && !g.decode(w, r, &body) {
		return
	}
	resp, err := g.checkout.Complete(r.Context(), &checkoutv1.CompleteRequest{
		SessionID:  mux.Vars(r)["sessionId"],
		CustomerID: actorFrom(r.Context()).UserID,
		PaymentID:  body.PaymentID,
	})
	g.respond(w, r, http.StatusCreated, resp, err)
}

func (g *gateway) cancelCheckout(w http.ResponseWriter, r *http.Request) {
	_, err := g.checkout.Cancel(r.Context(), g.sessionRequest(r))
	g.respond(w, r, http.StatusNoContent, nil, err)
}

func (g *gateway) sessionRequest(r *http.Request) *checkoutv1.SessionRequest {
	return &checkoutv1.SessionRequest{
		SessionID:  mux.Vars(r)["sessionId"],
		CustomerID: actorFrom(r.Context()).UserID,
	}
}

// Orders

func (g *gateway) listOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	resp, err := g.orders.ListOrders(r.Context(), &orderv1.ListOrdersRequest{
		Actor: actorFrom(r.Context()),
		Limit: limit,
	})
	g.respond(w, r, http.StatusOK, resp, err)
}

func (g *gateway) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := g.orders.GetOrder(r.Context(), &orderv1.GetOrderRequest{
		Actor:   actorFrom(r.Context()),
		OrderID: mux.Vars(r)["id"],
	})
	g.respond(w, r, http.StatusOK, order, err)
}

func (g *gateway) updateItemStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status           string `json:"status"`
		TrackingNumber   string `json:"tracking_number,omitempty"`
		ShippingProvider string `json:"shipping_provider,omitempty"`
	}
	if !g.decode(w, r, &body) {
		return
	}
	item, err := g.orders.UpdateItemStatus(r.Context(), &orderv1.UpdateItemStatusRequest{
		Actor:            actorFrom(r.Context()),
		ItemID:           mux.Vars(r)["itemId"],
		Status:           body.Status,
		TrackingNumber:   body.TrackingNumber,
		ShippingProvider: body.ShippingProvider,
	})
	g.respond(w, r, http.StatusOK, item, err)
}

func (g *gateway) shipOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TrackingNumber string `json:"tracking_number"`
		CourierName    string `json:"courier_name"`
	}
	if !g.decode(w, r, &body) {
		return
	}
	order, err := g.orders.ShipOrder(r.Context(), &orderv1.ShipOrderRequest{
		Actor:          actorFrom(r.Context()),
		OrderID:        mux.Vars(r)["id"],
		TrackingNumber: body.TrackingNumber,
		Courier:        body.CourierName,
	})
	g.respond(w, r, http.StatusOK, order, err)
}

func (g *gateway) transitionOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if !g.decode(w, r, &body) {
		return
	}
	order, err := g.orders.TransitionOrder(r.Context(), &orderv1.TransitionOrderRequest{
		Actor:   actorFrom(r.Context()),
		OrderID: mux.Vars(r)["id"],
		Status:  body.Status,
	})
	g.respond(w, r, http.StatusOK, order, err)
}

func (g *gateway) sellerMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := g.orders.GetSellerMetrics(r.Context(), &orderv1.SellerMetricsRequest{
		Actor:    actorFrom(r.Context()),
		SellerID: mux.Vars(r)["sellerId"],
	})
	g.respond(w, r, http.StatusOK, m, err)
}

func (g *gateway) anonymizeCustomer(w http.ResponseWriter, r *http.Request) {
	if actorFrom(r.Context()).Role != "admin" {
		g.fail(w, r, apperr.ToStatus(apperr.Forbidden("admin only")))
		return
	}
	resp, err := g.orders.AnonymizeCustomer(r.Context(), &orderv1.AnonymizeCustomerRequest{
		CustomerID: mux.Vars(r)["customerId"],
	})
	g.respond(w, r, http.StatusOK, resp, err)
}

// helpers

// idempotencyKey prefers the Idempotency-Key header over the body field.
func idempotencyKey(r *http.Request, fromBody string) string {
	if k := idempotency.Key(r); k != "" {
		return k
	}
	return strings.TrimSpace(fromBody)
}

func (g *gateway) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return false
	}
	return true
}

func (g *gateway) respond(w http.ResponseWriter, r *http.Request, okStatus int, v any, err error) {
	if err != nil {
		g.fail(w, r, err)
		return
	}
	if okStatus == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, okStatus, v)
}

// fail writes the error and tells the auth sink about rejected identities
// and expired checkout sessions.
func (g *gateway) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errUnauthenticated) {
		g.auth.Publish(r.Context(), authevent.Event{Kind: authevent.KindLogout, Reason: err.Error()})
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", err.Error(), nil)
		return
	}

	status, code, msg := httpStatusFromGRPC(err)
	_, details := apperr.Reason(err)
	userID := actorFrom(r.Context()).UserID

	switch {
	case status == http.StatusForbidden:
		g.auth.Publish(r.Context(), authevent.Event{Kind: authevent.KindForbidden, UserID: userID, Reason: msg})
	case code == apperr.ReasonSessionExpired:
		g.auth.Publish(r.Context(), authevent.Event{Kind: authevent.KindSessionExpired, UserID: userID, Reason: msg})
	case status >= http.StatusInternalServerError:
		g.log.Error("upstream call failed", slog.String("path", r.URL.Path), slog.Any("err", err))
	}
	writeError(w, status, code, msg, details)
}
