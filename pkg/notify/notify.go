// Package notify dispatches customer notifications. Delivery is always
// fire-and-forget from the caller's point of view.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Message struct {
	To      string            `json:"to"`
	Subject string            `json:"subject"`
	Body    string            `json:"body"`
	Meta    map[string]string `json:"meta,omitempty"`
}

type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier only logs; used when no broker is configured.
type LogNotifier struct {
	Log *slog.Logger
}

func (n LogNotifier) Send(_ context.Context, msg Message) error {
	n.Log.Info("notification", slog.String("to", msg.To), slog.String("subject", msg.Subject))
	return nil
}

// Dispatcher sends in the background and logs failures instead of
// returning them.
type Dispatcher struct {
	n       Notifier
	log     *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(n Notifier, log *slog.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{n: n, log: log, timeout: timeout}
}

func (d *Dispatcher) Fire(msg Message) {
	if d == nil || d.n == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.n.Send(ctx, msg); err != nil {
			d.log.Warn("notification send failed",
				slog.String("to", msg.To),
				slog.String("subject", msg.Subject),
				slog.Any("err", err))
		}
	}()
}

// Wait blocks until in-flight sends finish.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
