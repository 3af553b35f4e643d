// Package cache provides the TTL cache used to memoize assistant replies and
// idempotent responses. Three drivers exist:
//
//   - Noop:  every Get misses, every Set is dropped
//   - Store: entries live in the storage backend's CacheEntries kind
//   - Redis: entries are native Redis keys with a TTL
//
// New picks one from configuration and wraps it with Prometheus counters.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/go-edu-chat-backend/internal/config"
	"github.com/tbourn/go-edu-chat-backend/internal/domain"
	"github.com/tbourn/go-edu-chat-backend/internal/storage"
)

// Cache stores opaque string values under string keys with an expiry.
type Cache interface {
	// Get returns the value stored under key. ok is false when the key is
	// absent or expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores value under key for ttl, replacing any previous entry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// ChatKey derives the cache key of a chat request. The key depends only on
// the message and the history, in order.
func ChatKey(message string, history []domain.Turn) string {
	if history == nil {
		history = []domain.Turn{}
	}
	payload, _ := json.Marshal(struct {
		Message string        `json:"message"`
		History []domain.Turn `json:"history"`
	}{message, history})
	sum := sha256.Sum256(payload)
	return "chat:" + hex.EncodeToString(sum[:])
}

// IdempotencyKey derives the cache key of a stored response for the user's
// Idempotency-Key. Hashing bounds the length whatever the client sends.
func IdempotencyKey(userID, key string) string {
	sum := sha256.Sum256([]byte(userID + "\x00" + key))
	return "idem:" + hex.EncodeToString(sum[:])
}

// New builds the cache selected by cfg.Driver. The store driver persists to
// b; the redis driver dials cfg.RedisAddr lazily. The returned close func
// releases driver resources and is never nil.
func New(cfg config.CacheConfig, b storage.Backend) (Cache, func() error, error) {
	noClose := func() error { return nil }
	switch cfg.Driver {
	case config.CacheNone, "":
		return Instrument(Noop{}, config.CacheNone), noClose, nil
	case config.CacheStore:
		if b == nil {
			return nil, nil, fmt.Errorf("cache: store driver needs a storage backend")
		}
		return Instrument(NewStore(b), config.CacheStore), noClose, nil
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return Instrument(NewRedis(client), config.CacheRedis), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("cache: unknown driver %q", cfg.Driver)
	}
}

// Noop is a cache that never stores anything.
type Noop struct{}

// Get always misses.
func (Noop) Get(context.Context, string) (string, bool, error) { return "", false, nil }

// Set does nothing.
func (Noop) Set(context.Context, string, string, time.Duration) error { return nil }
