// Package storage defines the persistence contract shared by the relational
// (GORM) and key-value (DynamoDB) backends, plus the entity metadata both
// backends need to address records uniformly.
//
// Business code depends only on Backend. Which implementation sits behind it
// is decided once in Open and injected at startup.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/tbourn/go-edu-chat-backend/internal/domain"
)

// ErrNotFound is returned by Get and Update when no record has the key.
var ErrNotFound = errors.New("storage: record not found")

// ErrUnknownIndex is returned when Query names an index the kind lacks, or
// passes the wrong number of values for it.
var ErrUnknownIndex = errors.New("storage: unknown index")

// Backend is the capability set every store provides. Records are the
// domain structs; dst arguments are pointers to a struct (Get) or to a
// slice of structs (Query).
type Backend interface {
	// Get loads the record whose primary key equals key into dst.
	Get(ctx context.Context, kind Kind, key string, dst any) error
	// Query loads every record matching the index values into dst, ordered
	// by created_at ascending then primary key.
	Query(ctx context.Context, kind Kind, index string, dst any, values ...string) error
	// Put creates the record or replaces an existing one with the same key.
	Put(ctx context.Context, kind Kind, record any) error
	// Update sets the given attributes on an existing record.
	Update(ctx context.Context, kind Kind, key string, fields map[string]any) error
	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, kind Kind, key string) error
	// Name identifies the backend in logs and metrics.
	Name() string
	// Close releases the underlying client.
	Close() error
}

// Index describes a secondary index. Fields holds one attribute (simple
// lookup) or two (composite lookup, partition then sort key).
type Index struct {
	Name   string
	Fields []string
}

// Kind describes one entity type: where it lives and how it is addressed.
type Kind struct {
	// Name is the logical entity name, also the DynamoDB table suffix.
	Name string
	// PK is the primary key column/attribute.
	PK string
	// Indexes lists the secondary indexes by name.
	Indexes []Index
	// New returns a zero value of the model, used by the relational backend
	// to resolve the table.
	New func() any
}

// Index looks up a secondary index by name.
func (k Kind) Index(name string) (Index, bool) {
	for _, ix := range k.Indexes {
		if ix.Name == name {
			return ix, true
		}
	}
	return Index{}, false
}

// Index names shared by the backends.
const (
	EmailIndex           = "EmailIndex"
	ProviderAccountIndex = "ProviderAccountIndex"
	UserIDIndex          = "UserIdIndex"
	ConversationIDIndex  = "ConversationIdIndex"
	TopicIndex           = "TopicIndex"
)

// Entity kinds.
var (
	Users = Kind{
		Name:    "Users",
		PK:      "id",
		Indexes: []Index{{Name: EmailIndex, Fields: []string{"email"}}},
		New:     func() any { return &domain.User{} },
	}
	Sessions = Kind{
		Name:    "Sessions",
		PK:      "session_token",
		Indexes: []Index{{Name: UserIDIndex, Fields: []string{"user_id"}}},
		New:     func() any { return &domain.Session{} },
	}
	Accounts = Kind{
		Name: "Accounts",
		PK:   "id",
		Indexes: []Index{
			{Name: ProviderAccountIndex, Fields: []string{"provider", "provider_account_id"}},
			{Name: UserIDIndex, Fields: []string{"user_id"}},
		},
		New: func() any { return &domain.Account{} },
	}
	Conversations = Kind{
		Name: "Conversations",
		PK:   "id",
		New:  func() any { return &domain.Conversation{} },
	}
	Participants = Kind{
		Name: "Participants",
		PK:   "id",
		Indexes: []Index{
			{Name: ConversationIDIndex, Fields: []string{"conversation_id"}},
			{Name: UserIDIndex, Fields: []string{"user_id"}},
		},
		New: func() any { return &domain.Participant{} },
	}
	Messages = Kind{
		Name:    "Messages",
		PK:      "id",
		Indexes: []Index{{Name: ConversationIDIndex, Fields: []string{"conversation_id"}}},
		New:     func() any { return &domain.Message{} },
	}
	Questions = Kind{
		Name:    "Questions",
		PK:      "id",
		Indexes: []Index{{Name: TopicIndex, Fields: []string{"topic"}}},
		New:     func() any { return &domain.Question{} },
	}
	CacheEntries = Kind{
		Name: "Cache",
		PK:   "key",
		New:  func() any { return &domain.CacheEntry{} },
	}
)

// Kinds lists every entity kind, in dependency order.
var Kinds = []Kind{Users, Sessions, Accounts, Conversations, Participants, Messages, Questions, CacheEntries}

// Timestamp normalizes t to the precision and zone both backends round-trip
// identically: UTC, millisecond resolution.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// Now returns the current time normalized with Timestamp.
func Now() time.Time { return Timestamp(time.Now()) }
