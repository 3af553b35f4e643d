package storage

import (
	"context"
	"fmt"

	"github.com/tbourn/go-edu-chat-backend/internal/config"
)

// Open builds the backend selected by cfg. It is called once at startup;
// the returned Backend is shared for the life of the process and closed at
// shutdown.
func Open(ctx context.Context, cfg config.StorageConfig, tracing bool) (Backend, error) {
	switch cfg.Backend {
	case config.BackendSQL:
		opt := SQLOptions{Tracing: tracing, Silent: true}
		if cfg.Driver == "postgres" {
			return OpenPostgres(cfg.DatabaseURL, opt)
		}
		return OpenSQLite(cfg.DBPath, opt)
	case config.BackendDynamo:
		d, err := OpenDynamo(ctx, DynamoOptions{
			Region:      cfg.Region,
			Endpoint:    cfg.Endpoint,
			TablePrefix: cfg.TablePrefix,
			AccessKey:   cfg.AccessKey,
			SecretKey:   cfg.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		if cfg.CreateTables {
			if err := d.EnsureTables(ctx); err != nil {
				return nil, err
			}
		}
		return d, nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}
