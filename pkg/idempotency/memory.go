package idempotency

import (
	"context"
	"sync"
	"time"
)

type memRecord struct {
	value     []byte
	expiresAt time.Time
}

type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memRecord
	now     func() time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{records: make(map[string]memRecord), now: now}
}

func (s *MemoryStore) PutIfAbsent(_ context.Context, scope, key string, value []byte, ttl time.Duration) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := scope + "\x00" + key
	if rec, ok := s.records[k]; ok && s.now().Before(rec.expiresAt) {
		return clone(rec.value), false, nil
	}
	s.records[k] = memRecord{value: clone(value), expiresAt: s.now().Add(ttl)}
	return nil, true, nil
}

func (s *MemoryStore) Get(_ context.Context, scope, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[scope+"\x00"+key]
	if !ok || !s.now().Before(rec.expiresAt) {
		return nil, ErrNotFound
	}
	return clone(rec.value), nil
}

func (s *MemoryStore) Put(_ context.Context, scope, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[scope+"\x00"+key] = memRecord{value: clone(value), expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, scope+"\x00"+key)
	return nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, rec := range s.records {
		if !rec.expiresAt.After(before) {
			delete(s.records, k)
			n++
		}
	}
	return n, nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
