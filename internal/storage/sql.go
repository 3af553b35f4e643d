package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-edu-chat-backend/internal/domain"
)

func init() { schema.RegisterSerializer("emptynull", emptyNull{}) }

// emptyNull stores an empty string as NULL so optional values behind a
// unique index (user email) never collide with each other.
type emptyNull struct{}

func (emptyNull) Scan(ctx context.Context, field *schema.Field, dst reflect.Value, dbValue any) error {
	var ns sql.NullString
	if err := ns.Scan(dbValue); err != nil {
		return err
	}
	field.ReflectValueOf(ctx, dst).SetString(ns.String)
	return nil
}

func (emptyNull) Value(_ context.Context, _ *schema.Field, _ reflect.Value, fieldValue any) (any, error) {
	if s, _ := fieldValue.(string); s != "" {
		return s, nil
	}
	return nil, nil
}

// SQL is the relational backend. It works against any GORM dialect; the
// process uses SQLite in development and PostgreSQL when configured.
type SQL struct {
	db *gorm.DB
}

// SQLOptions tunes how the relational backend is opened.
type SQLOptions struct {
	// Tracing installs the OpenTelemetry GORM plugin.
	Tracing bool
	// Silent disables GORM's statement logger.
	Silent bool
}

// NewSQL wraps an open GORM handle. The schema must already be migrated.
func NewSQL(db *gorm.DB) *SQL { return &SQL{db: db} }

// OpenSQLite opens (or creates) a SQLite database, applies PRAGMAs and
// migrates the schema.
func OpenSQLite(path string, opt SQLOptions) (*SQL, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." && !isMemoryDSN(path) {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig(opt))
	if err != nil {
		return nil, err
	}

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	return finishOpen(db, opt, 10)
}

// OpenPostgres connects to PostgreSQL using a libpq/pgx DSN and migrates
// the schema.
func OpenPostgres(dsn string, opt SQLOptions) (*SQL, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig(opt))
	if err != nil {
		return nil, err
	}
	return finishOpen(db, opt, 25)
}

func gormConfig(opt SQLOptions) *gorm.Config {
	cfg := &gorm.Config{}
	if opt.Silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	return cfg
}

func finishOpen(db *gorm.DB, opt SQLOptions, maxConns int) (*SQL, error) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(maxConns)
		sqlDB.SetMaxIdleConns(maxConns)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	if opt.Tracing {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, fmt.Errorf("gorm tracing: %w", err)
		}
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQL{db: db}, nil
}

// AutoMigrate creates or updates every table the backends use.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Session{},
		&domain.Account{},
		&domain.Conversation{},
		&domain.Participant{},
		&domain.Message{},
		&domain.Question{},
		&domain.CacheEntry{},
	)
}

// DB exposes the underlying handle for health checks and tests.
func (s *SQL) DB() *gorm.DB { return s.db }

// Name implements Backend.
func (s *SQL) Name() string { return "sql" }

// Get implements Backend.
func (s *SQL) Get(ctx context.Context, kind Kind, key string, dst any) error {
	err := s.db.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Name: kind.PK}, Value: key}).
		Take(dst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Query implements Backend.
func (s *SQL) Query(ctx context.Context, kind Kind, index string, dst any, values ...string) error {
	ix, ok := kind.Index(index)
	if !ok || len(ix.Fields) != len(values) {
		return fmt.Errorf("%w: %s.%s", ErrUnknownIndex, kind.Name, index)
	}
	q := s.db.WithContext(ctx)
	for i, f := range ix.Fields {
		q = q.Where(clause.Eq{Column: clause.Column{Name: f}, Value: values[i]})
	}
	return q.
		Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: kind.PK}}).
		Find(dst).Error
}

// Put implements Backend. Existing rows are replaced column by column.
func (s *SQL) Put(ctx context.Context, kind Kind, record any) error {
	if reflect.ValueOf(record).Kind() != reflect.Pointer {
		return fmt.Errorf("storage: put %s: record must be a pointer", kind.Name)
	}
	return s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: kind.PK}},
			UpdateAll: true,
		}).
		Create(record).Error
}

// Update implements Backend.
func (s *SQL) Update(ctx context.Context, kind Kind, key string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).
		Model(kind.New()).
		Where(clause.Eq{Column: clause.Column{Name: kind.PK}, Value: key}).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete implements Backend.
func (s *SQL) Delete(ctx context.Context, kind Kind, key string) error {
	return s.db.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Name: kind.PK}, Value: key}).
		Delete(kind.New()).Error
}

// Close implements Backend.
func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isMemoryDSN(path string) bool {
	return path == ":memory:" || len(path) >= 5 && path[:5] == "file:"
}
