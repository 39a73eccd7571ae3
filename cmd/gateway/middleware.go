package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	orderv1 "github.com/dwikikusuma/shoping-market/api/order/v1"
	"github.com/dwikikusuma/shoping-market/pkg/metrics"
)

const (
	headerUserID   = "X-User-ID"
	headerRole     = "X-User-Role"
	headerSellerID = "X-Seller-ID"
)

type actorKey struct{}

// identify reads the caller from the auth headers set by the edge proxy.
// Requests without a user id are rejected before reaching a handler.
func (g *gateway) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(headerUserID))
		if userID == "" {
			g.fail(w, r, errUnauthenticated)
			return
		}
		role := strings.ToLower(strings.TrimSpace(r.Header.Get(headerRole)))
		if role == "" {
			role = "customer"
		}
		actor := orderv1.Actor{
			UserID:   userID,
			Role:     role,
			SellerID: strings.TrimSpace(r.Header.Get(headerSellerID)),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func actorFrom(ctx context.Context) orderv1.Actor {
	a, _ := ctx.Value(actorKey{}).(orderv1.Actor)
	return a
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and latency per route template.
func instrument(m *metrics.ServerMetrics, log *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			handler := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					handler = r.Method + " " + tpl
				}
			}
			m.Observe(handler, rec.status, started)
			log.Debug("http request",
				slog.String("handler", handler),
				slog.Int("status", rec.status),
				slog.Int64("duration_ms", time.Since(started).Milliseconds()))
		})
	}
}
