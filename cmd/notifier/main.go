// Command notifier drains the notification queue. Delivery is a log line
// until a mail or push provider is wired in.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/dwikikusuma/shoping-market/pkg/config"
	"github.com/dwikikusuma/shoping-market/pkg/logger"
	"github.com/dwikikusuma/shoping-market/pkg/notify"
	"github.com/dwikikusuma/shoping-market/pkg/rabbitmq"
	"github.com/dwikikusuma/shoping-market/pkg/shutdown"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{Service: "notifier", Env: cfg.AppEnv, Level: cfg.LogLevel, AddSource: true})

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if cfg.RabbitMQURL == "" {
		log.Error("RABBITMQ_URL is required")
		os.Exit(1)
	}

	client, err := rabbitmq.Dial(ctx, rabbitmq.Config{URL: cfg.RabbitMQURL, Exchange: rabbitmq.NotificationsExchange}, log)
	if err != nil {
		log.Error("rabbitmq connect", slog.Any("err", err))
		os.Exit(1)
	}
	defer client.Close()

	if err := client.DeclareQueue(cfg.NotificationQueue, rabbitmq.NotificationRoutingKey); err != nil {
		log.Error("declare queue", slog.Any("err", err))
		os.Exit(1)
	}

	deliver := notify.LogNotifier{Log: log}
	log.Info("notifier consuming", slog.String("queue", cfg.NotificationQueue))
	err = client.Consume(ctx, cfg.NotificationQueue, func(ctx context.Context, body []byte) error {
		return handle(ctx, deliver, body)
	})
	if err != nil {
		log.Error("consume", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("bye")
}

func handle(ctx context.Context, n notify.Notifier, body []byte) error {
	var msg notify.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		// a malformed message will never decode; drop it instead of requeueing
		return nil
	}
	if msg.To == "" {
		return nil
	}
	if err := n.Send(ctx, msg); err != nil {
		return fmt.Errorf("deliver to %s: %w", msg.To, err)
	}
	return nil
}
