package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dwikikusuma/shoping-market/internal/apperr"
	"github.com/dwikikusuma/shoping-market/internal/checkout/domain"
)

// SessionRepo stores sessions as JSON so callers never share slices with
// the stored copy.
type SessionRepo struct {
	mu       sync.RWMutex
	sessions map[string][]byte
	expires  map[string]time.Time
}

func NewSessionRepo() *SessionRepo {
	return &SessionRepo{
		sessions: make(map[string][]byte),
		expires:  make(map[string]time.Time),
	}
}

func (r *SessionRepo) Create(_ context.Context, s domain.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.ID]; exists {
		return apperr.ErrConflict
	}
	r.sessions[s.ID] = data
	r.expires[s.ID] = s.ExpiresAt
	return nil
}

func (r *SessionRepo) Get(_ context.Context, id string) (domain.Session, error) {
	r.mu.RLock()
	data, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return domain.Session{}, apperr.NotFound("checkout session", id)
	}
	var s domain.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.Session{}, err
	}
	return s, nil
}

func (r *SessionRepo) Save(_ context.Context, s domain.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; !ok {
		return apperr.NotFound("checkout session", s.ID)
	}
	r.sessions[s.ID] = data
	r.expires[s.ID] = s.ExpiresAt
	return nil
}

func (r *SessionRepo) Purge(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, exp := range r.expires {
		if exp.Before(before) {
			delete(r.sessions, id)
			delete(r.expires, id)
			n++
		}
	}
	return n, nil
}
