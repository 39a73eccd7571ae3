// Package authevent carries "session expired" / "log out" signals from the
// components that detect them to whoever reacts. One Sink is built at
// startup and passed explicitly to its producers.
package authevent

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Kind string

const (
	KindSessionExpired Kind = "session_expired"
	KindForbidden      Kind = "forbidden"
	KindLogout         Kind = "logout"
)

type Event struct {
	Kind      Kind
	UserID    string
	Reason    string
	Timestamp time.Time
}

type Sink interface {
	Publish(ctx context.Context, ev Event)
}

// Broadcaster fans events out to subscribers registered at wiring time.
type Broadcaster struct {
	mu   sync.RWMutex
	subs []func(context.Context, Event)
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

func (b *Broadcaster) Subscribe(fn func(context.Context, Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

func (b *Broadcaster) Publish(ctx context.Context, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	subs := append([]func(context.Context, Event){}, b.subs...)
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(ctx, ev)
	}
}

// LogSubscriber records events in the service log.
func LogSubscriber(log *slog.Logger) func(context.Context, Event) {
	return func(ctx context.Context, ev Event) {
		log.InfoContext(ctx, "auth event",
			slog.String("kind", string(ev.Kind)),
			slog.String("user_id", ev.UserID),
			slog.String("reason", ev.Reason))
	}
}
