package cache

import (
	"context"
	"errors"
	"time"

	"github.com/tbourn/go-edu-chat-backend/internal/domain"
	"github.com/tbourn/go-edu-chat-backend/internal/storage"
)

// Store keeps entries in the storage backend. Expired entries are removed
// lazily, by the read that finds them.
type Store struct {
	b   storage.Backend
	now func() time.Time
}

// NewStore returns a cache over b using the wall clock.
func NewStore(b storage.Backend) *Store {
	return &Store{b: b, now: time.Now}
}

// WithClock replaces the clock. Used by tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Get implements Cache.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var e domain.CacheEntry
	err := s.b.Get(ctx, storage.CacheEntries, key, &e)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if !s.now().Before(e.ExpiresAt) {
		if err := s.b.Delete(ctx, storage.CacheEntries, key); err != nil {
			return "", false, err
		}
		return "", false, nil
	}
	return e.Value, true, nil
}

// Set implements Cache. The TTL counts from the call.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	now := storage.Timestamp(s.now())
	return s.b.Put(ctx, storage.CacheEntries, &domain.CacheEntry{
		Key:       key,
		Value:     value,
		ExpiresAt: storage.Timestamp(now.Add(ttl)),
		CreatedAt: now,
	})
}
