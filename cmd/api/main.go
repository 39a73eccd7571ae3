package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"

	cartv1 "github.com/dwikikusuma/shoping-market/api/cart/v1"
	catalogv1 "github.com/dwikikusuma/shoping-market/api/catalog/v1"
	checkoutv1 "github.com/dwikikusuma/shoping-market/api/checkout/v1"
	orderv1 "github.com/dwikikusuma/shoping-market/api/order/v1"

	cartapp "github.com/dwikikusuma/shoping-market/internal/cart/app"
	cartgrpc "github.com/dwikikusuma/shoping-market/internal/cart/grpc"
	cartmem "github.com/dwikikusuma/shoping-market/internal/cart/infra/memory"
	cartpg "github.com/dwikikusuma/shoping-market/internal/cart/infra/postgres"

	catalogapp "github.com/dwikikusuma/shoping-market/internal/catalog/app"
	cataloggrpc "github.com/dwikikusuma/shoping-market/internal/catalog/grpc"
	catalogmem "github.com/dwikikusuma/shoping-market/internal/catalog/infra/memory"
	catalogpg "github.com/dwikikusuma/shoping-market/internal/catalog/infra/postgres"

	checkoutapp "github.com/dwikikusuma/shoping-market/internal/checkout/app"
	checkoutgrpc "github.com/dwikikusuma/shoping-market/internal/checkout/grpc"
	checkoutadapter "github.com/dwikikusuma/shoping-market/internal/checkout/infra/adapter"
	checkoutmem "github.com/dwikikusuma/shoping-market/internal/checkout/infra/memory"
	checkoutpg "github.com/dwikikusuma/shoping-market/internal/checkout/infra/postgres"

	orderapp "github.com/dwikikusuma/shoping-market/internal/order/app"
	ordergrpc "github.com/dwikikusuma/shoping-market/internal/order/grpc"
	ordermem "github.com/dwikikusuma/shoping-market/internal/order/infra/memory"
	orderpg "github.com/dwikikusuma/shoping-market/internal/order/infra/postgres"

	"github.com/dwikikusuma/shoping-market/internal/payment"
	"github.com/dwikikusuma/shoping-market/pkg/config"
	"github.com/dwikikusuma/shoping-market/pkg/idempotency"
	"github.com/dwikikusuma/shoping-market/pkg/kafka"
	"github.com/dwikikusuma/shoping-market/pkg/logger"
	"github.com/dwikikusuma/shoping-market/pkg/metrics"
	"github.com/dwikikusuma/shoping-market/pkg/notify"
	"github.com/dwikikusuma/shoping-market/pkg/outbox"
	"github.com/dwikikusuma/shoping-market/pkg/postgres"
	"github.com/dwikikusuma/shoping-market/pkg/rabbitmq"
	"github.com/dwikikusuma/shoping-market/pkg/shutdown"
)

const purgeInterval = time.Minute

// stores is the storage each service runs on: postgres, or in-memory in
// dev mode.
type stores struct {
	catalog     catalogapp.ProductRepo
	cart        cartapp.CartRepo
	orders      orderapp.OrderRepo
	sessions    checkoutapp.SessionRepo
	idempotency idempotency.Store
	outbox      outbox.Store
}

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{Service: "api", Env: cfg.AppEnv, Level: cfg.LogLevel, AddSource: true})

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	var st stores
	if cfg.DatabaseURL != "" {
		pool := mustDB(ctx, cfg, log)
		defer pool.Close()
		st = postgresStores(pool)
	} else {
		log.Warn("DATABASE_URL not set, running on in-memory stores")
		st = memoryStores(cfg, log)
	}

	simCfg, err := payment.LoadSimConfig(cfg.PaymentConfigFile)
	if err != nil {
		log.Error("payment config", slog.Any("err", err))
		os.Exit(1)
	}
	simCfg.Timeout = cfg.PaymentTimeout
	gateway := payment.NewSimulator(simCfg)

	notifier, closeNotifier := buildNotifier(ctx, cfg, log)
	defer closeNotifier()
	dispatcher := notify.NewDispatcher(notifier, log, 10*time.Second)

	// Catalog
	catalogSvc := catalogapp.NewService(st.catalog)

	// Cart
	cartSvc := cartapp.NewService(st.cart, catalogSvc, log)

	// Orders
	orderSvc := orderapp.NewService(st.orders, cartSvc, dispatcher, gateway, log)

	// Checkout (adapters)
	checkoutSvc := checkoutapp.NewService(checkoutapp.Deps{
		Sessions:    st.sessions,
		Cart:        checkoutadapter.NewCartServiceReader(cartSvc),
		Catalog:     checkoutadapter.NewCatalogServiceReader(catalogSvc),
		Orders:      checkoutadapter.NewOrderServicePlacer(orderSvc),
		Gateway:     gateway,
		Idempotency: st.idempotency,
		Metrics:     metrics.NewCheckout(prometheus.DefaultRegisterer),
		Log:         log,
	}, checkoutapp.Config{
		SessionTTL:    cfg.CheckoutSessionTTL,
		MaxConcurrent: cfg.CheckoutMaxConcurrent,
	})

	addr := fmt.Sprintf(":%d", cfg.GRPCPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error("listen failed", slog.Any("err", err), slog.String("addr", addr))
		os.Exit(1)
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		deadlineInterceptor(cfg.DBQueryTimeout+cfg.PaymentTimeout),
		loggingInterceptor(log),
	))
	catalogv1.RegisterCatalogServiceServer(grpcServer, cataloggrpc.NewServer(catalogSvc))
	cartv1.RegisterCartServiceServer(grpcServer, cartgrpc.NewServer(cartSvc))
	checkoutv1.RegisterCheckoutServiceServer(grpcServer, checkoutgrpc.NewServer(checkoutSvc))
	orderv1.RegisterOrderServiceServer(grpcServer, ordergrpc.NewServer(orderSvc))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("grpc starting", slog.String("addr", addr))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("grpc serve error", slog.Any("err", err))
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runOutboxRelay(ctx, cfg, st.outbox, log)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		purgeLoop(ctx, checkoutSvc, log)
	}()

	<-ctx.Done()
	log.Info("shutdown requested")

	shutdown.Graceful(log, 10*time.Second, grpcServer.GracefulStop, grpcServer.Stop)
	wg.Wait()
	dispatcher.Wait()
	log.Info("bye")
}

func postgresStores(pool *pgxpool.Pool) stores {
	return stores{
		catalog:     catalogpg.NewProductRepo(pool),
		cart:        cartpg.NewCartRepo(pool),
		orders:      orderpg.NewOrderRepo(pool),
		sessions:    checkoutpg.NewSessionRepo(pool),
		idempotency: idempotency.NewPostgresStore(pool),
		outbox:      outbox.NewPostgresStore(pool),
	}
}

func memoryStores(cfg config.Config, log *slog.Logger) stores {
	products := catalogmem.NewProductStore()
	if cfg.CatalogSeedFile != "" {
		n, err := products.LoadSeed(cfg.CatalogSeedFile)
		if err != nil {
			log.Error("catalog seed", slog.Any("err", err))
			os.Exit(1)
		}
		log.Info("catalog seeded", slog.Int("products", n))
	}
	events := outbox.NewMemoryStore()
	return stores{
		catalog:     products,
		cart:        cartmem.NewCartRepo(),
		orders:      ordermem.NewOrderRepo(products, events),
		sessions:    checkoutmem.NewSessionRepo(),
		idempotency: idempotency.NewMemoryStore(func() time.Time { return time.Now().UTC() }),
		outbox:      events,
	}
}

func mustDB(ctx context.Context, cfg config.Config, log *slog.Logger) *pgxpool.Pool {
	pool, err := postgres.Open(ctx, postgres.Config{
		URL:          cfg.DatabaseURL,
		QueryTimeout: cfg.DBQueryTimeout,
	})
	if err != nil {
		log.Error("db open failed", slog.Any("err", err))
		os.Exit(1)
	}
	if cfg.MigrationsDir != "" {
		applied, err := postgres.Migrate(ctx, pool, cfg.MigrationsDir)
		if err != nil {
			log.Error("db migrate failed", slog.Any("err", err))
			os.Exit(1)
		}
		log.Info("db migrated", slog.Any("applied", applied))
	}
	return pool
}

// buildNotifier publishes to RabbitMQ when configured and falls back to
// logging otherwise.
func buildNotifier(ctx context.Context, cfg config.Config, log *slog.Logger) (notify.Notifier, func()) {
	if cfg.RabbitMQURL == "" {
		return notify.LogNotifier{Log: log}, func() {}
	}

	client, err := rabbitmq.Dial(ctx, rabbitmq.Config{URL: cfg.RabbitMQURL, Exchange: rabbitmq.NotificationsExchange}, log)
	if err != nil {
		log.Warn("rabbitmq unavailable, notifications will only be logged", slog.Any("err", err))
		return notify.LogNotifier{Log: log}, func() {}
	}
	if err := client.DeclareQueue(cfg.NotificationQueue, rabbitmq.NotificationRoutingKey); err != nil {
		log.Warn("declare notification queue failed", slog.Any("err", err))
	}
	return notify.NewQueueNotifier(client, rabbitmq.NotificationRoutingKey), func() {
		if err := client.Close(); err != nil {
			log.Warn("rabbitmq close", slog.Any("err", err))
		}
	}
}

func runOutboxRelay(ctx context.Context, cfg config.Config, store outbox.Store, log *slog.Logger) {
	var pub outbox.Publisher = logPublisher{log: log}
	client := kafka.NewClient(cfg.KafkaBrokers)
	if client.Enabled() {
		producer := kafka.NewProducer(client, cfg.KafkaTopic)
		defer producer.Close()
		pub = producer
		log.Info("outbox relay publishing to kafka", slog.String("topic", cfg.KafkaTopic))
	}
	outbox.NewRelay(store, pub, log, cfg.OutboxPollInterval).Run(ctx)
}

// logPublisher stands in for kafka in dev mode.
type logPublisher struct {
	log *slog.Logger
}

func (p logPublisher) Publish(_ context.Context, key string, payload []byte) error {
	p.log.Debug("order event", slog.String("key", key), slog.Int("bytes", len(payload)))
	return nil
}

func purgeLoop(ctx context.Context, svc *checkoutapp.Service, log *slog.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.PurgeExpired(ctx)
			if err != nil {
				log.Warn("purge expired sessions", slog.Any("err", err))
				continue
			}
			if n > 0 {
				log.Info("expired sessions purged", slog.Int("count", n))
			}
		}
	}
}
