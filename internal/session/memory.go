// Package session keeps review sessions: an extracted profile a user is
// correcting before assessment. Sessions hold biomarker values and therefore
// always expire; nothing here is durable.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/biomarker-assessment-engine/internal/domain"
)

// DefaultTTL bounds how long a review session lives.
const DefaultTTL = 30 * time.Minute

// MemoryStore is an in-process session store with LRU eviction and TTL.
type MemoryStore struct {
	cache *expirable.LRU[string, domain.ReviewSession]
	locks *keyedMutex
}

// NewMemoryStore creates a store holding at most maxEntries sessions.
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &MemoryStore{
		cache: expirable.NewLRU[string, domain.ReviewSession](maxEntries, nil, ttl),
		locks: newKeyedMutex(),
	}
}

// Save stores a copy of the session, resetting its TTL.
func (m *MemoryStore) Save(_ context.Context, s *domain.ReviewSession) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("session id is required")
	}
	m.cache.Add(s.ID, *s)
	return nil
}

// Get returns a copy of the session or domain.ErrSessionNotFound.
func (m *MemoryStore) Get(_ context.Context, id string) (*domain.ReviewSession, error) {
	s, ok := m.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	return &s, nil
}

// Update applies fn to the session under its lock and stores the result.
func (m *MemoryStore) Update(ctx context.Context, id string, fn func(*domain.ReviewSession) error) (*domain.ReviewSession, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	s, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	s.ID = id
	m.cache.Add(id, *s)
	return s, nil
}

// Delete removes the session. Deleting an unknown session is not an error.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	unlock := m.locks.Lock(id)
	defer unlock()
	m.cache.Remove(id)
	return nil
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	return m.cache.Len()
}

// Close drops every session.
func (m *MemoryStore) Close() error {
	m.cache.Purge()
	return nil
}

// New builds the store selected by cfg.
func New(cfg domain.SessionConfig, cache domain.CacheConfig, logger *logrus.Logger) (domain.SessionStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(cfg.MaxEntries, cfg.TTL), nil
	case "redis":
		store, err := NewRedisStore(cache, cfg.TTL, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown session backend: %s", cfg.Backend)
	}
}
