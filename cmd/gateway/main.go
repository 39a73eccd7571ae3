package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	cartv1 "github.com/dwikikusuma/shoping-market/api/cart/v1"
	catalogv1 "github.com/dwikikusuma/shoping-market/api/catalog/v1"
	checkoutv1 "github.com/dwikikusuma/shoping-market/api/checkout/v1"
	orderv1 "github.com/dwikikusuma/shoping-market/api/order/v1"
	"github.com/dwikikusuma/shoping-market/pkg/authevent"
	"github.com/dwikikusuma/shoping-market/pkg/config"
	"github.com/dwikikusuma/shoping-market/pkg/logger"
	"github.com/dwikikusuma/shoping-market/pkg/metrics"
	"github.com/dwikikusuma/shoping-market/pkg/shutdown"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{
		Service:   "gateway",
		Env:       cfg.AppEnv,
		Level:     cfg.LogLevel,
		AddSource: true,
	})

	root := context.Background()
	ctx, cancel := shutdown.WithSignals(root)
	defer cancel()

	conn, err := grpc.NewClient(cfg.APIGRPCAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Error("api client", slog.Any("err", err), slog.String("addr", cfg.APIGRPCAddr))
		os.Exit(1)
	}
	defer conn.Close()

	auth := authevent.NewBroadcaster()
	auth.Subscribe(authevent.LogSubscriber(log))

	gw := &gateway{
		catalog:  catalogv1.NewCatalogServiceClient(conn),
		cart:     cartv1.NewCartServiceClient(conn),
		checkout: checkoutv1.NewCheckoutServiceClient(conn),
		orders:   orderv1.NewOrderServiceClient(conn),
		auth:     auth,
		log:      log,
	}

	router := mux.NewRouter()
	router.Use(instrument(metrics.NewServerMetrics(prometheus.DefaultRegisterer, "gateway"), log))
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }).Methods(http.MethodGet)
	router.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	gw.routes(router)

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// payment calls may take up to PaymentTimeout
		WriteTimeout: cfg.PaymentTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("http server starting", slog.String("addr", addr), slog.String("api", cfg.APIGRPCAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", slog.Any("err", err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", slog.Any("err", err))
	}

	wg.Wait()
	log.Info("bye")
}
