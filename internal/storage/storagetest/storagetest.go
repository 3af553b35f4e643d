// Package storagetest provides backends for tests: an in-memory SQLite
// database and an in-memory stand-in for the DynamoDB API.
package storagetest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/tbourn/go-edu-chat-backend/internal/storage"
)

// TablePrefix is the table prefix used by NewDynamo.
const TablePrefix = "Test-"

// NewSQL opens a private in-memory SQLite database with the full schema.
func NewSQL(t testing.TB) *storage.SQL {
	t.Helper()
	dsn := fmt.Sprintf("file:storagetest_%s?mode=memory&cache=shared", uuid.NewString())
	s, err := storage.OpenSQLite(dsn, storage.SQLOptions{Silent: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// NewDynamo returns a DynamoDB backend over a fresh FakeDynamo.
func NewDynamo(t testing.TB) (*storage.Dynamo, *FakeDynamo) {
	t.Helper()
	fake := NewFakeDynamo(TablePrefix)
	return storage.NewDynamo(fake, TablePrefix), fake
}

// Backends returns one instance of each backend, keyed by name, so a test
// can run the same scenario against both.
func Backends(t testing.TB) map[string]storage.Backend {
	t.Helper()
	d, _ := NewDynamo(t)
	return map[string]storage.Backend{
		"sql":      NewSQL(t),
		"dynamodb": d,
	}
}
