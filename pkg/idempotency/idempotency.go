// Package idempotency persists idempotency-key → result mappings with a TTL
// so that retried submissions replay the first result.
package idempotency

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

const Header = "Idempotency-Key"

// Key reads the Idempotency-Key request header.
func Key(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(Header))
}

var ErrNotFound = errors.New("idempotency key not found")

// Store keeps values per (scope, key). Expired records behave as absent.
type Store interface {
	// PutIfAbsent stores value unless a live record exists. It returns the
	// live value and stored=false in that case.
	PutIfAbsent(ctx context.Context, scope, key string, value []byte, ttl time.Duration) (existing []byte, stored bool, err error)
	Get(ctx context.Context, scope, key string) ([]byte, error)
	// Put overwrites unconditionally.
	Put(ctx context.Context, scope, key string, value []byte, ttl time.Duration) error
	// Delete releases a key; deleting an absent key is not an error.
	Delete(ctx context.Context, scope, key string) error
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}
