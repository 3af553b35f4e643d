// Package repo provides typed persistence operations for each domain entity
// on top of a storage.Backend. Every function works unchanged against the
// relational and the key-value backend.
//
// Timestamps are stamped here, normalized with storage.Timestamp, so both
// backends store and return identical values.
package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-edu-chat-backend/internal/storage"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = storage.ErrNotFound

// ErrDuplicate indicates a unique constraint rejected the write.
var ErrDuplicate = errors.New("duplicate")

// getOne loads a single record by primary key.
func getOne[T any](ctx context.Context, b storage.Backend, kind storage.Kind, key string) (*T, error) {
	var v T
	if err := b.Get(ctx, kind, key, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// queryAll loads every record matching an index, oldest first.
func queryAll[T any](ctx context.Context, b storage.Backend, kind storage.Kind, index string, values ...string) ([]T, error) {
	var out []T
	if err := b.Query(ctx, kind, index, &out, values...); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// findOne resolves a (possibly composite) index lookup to a single record,
// returning ErrNotFound when nothing matches. When several records match,
// the oldest wins.
func findOne[T any](ctx context.Context, b storage.Backend, kind storage.Kind, index string, values ...string) (*T, error) {
	all, err := queryAll[T](ctx, b, kind, index, values...)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNotFound
	}
	return &all[0], nil
}

// isUniqueViolation reports whether err came from a unique index.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite and pgx often surface plain-text errors for UNIQUE violations.
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key value")
}
