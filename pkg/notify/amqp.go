package notify

import (
	"context"
	"fmt"
)

// Publisher is the slice of the RabbitMQ client the notifier needs.
type Publisher interface {
	PublishJSON(ctx context.Context, routingKey string, v any) error
}

// QueueNotifier enqueues messages for cmd/notifier to deliver.
type QueueNotifier struct {
	pub        Publisher
	routingKey string
}

func NewQueueNotifier(pub Publisher, routingKey string) *QueueNotifier {
	return &QueueNotifier{pub: pub, routingKey: routingKey}
}

func (n *QueueNotifier) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("notification without recipient")
	}
	if err := n.pub.PublishJSON(ctx, n.routingKey, msg); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}
