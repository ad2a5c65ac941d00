package progress

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/felixgeelhaar/academy/internal/config"
	"github.com/felixgeelhaar/academy/internal/storage"
	"github.com/felixgeelhaar/academy/internal/storage/local"
	"github.com/felixgeelhaar/academy/internal/storage/postgres"
	"github.com/felixgeelhaar/academy/internal/storage/redis"
	"github.com/felixgeelhaar/academy/internal/storage/sqlite"
)

// Backend is an opened key-value backend
type Backend struct {
	Name string
	KV   storage.KV
	// SQLite is set when the backend is sqlite, for the activity log
	SQLite *sqlite.DB
	close  func() error
}

// Close releases the backend's connections
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// OpenBackend opens the configured backend. dataDir holds file and sqlite
// data. Remote backends are wrapped with retry and a circuit breaker.
func OpenBackend(ctx context.Context, cfg config.StorageConfig, dataDir string, logger *slog.Logger) (*Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return &Backend{Name: cfg.Backend, KV: storage.NewMemory()}, nil

	case config.BackendFile, "":
		store, err := local.NewStore(filepath.Join(dataDir, "progress"))
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		logger.Debug("file storage ready", "path", store.BasePath())
		return &Backend{Name: config.BackendFile, KV: store}, nil

	case config.BackendSQLite:
		path := cfg.SQLite.Path
		if path == "" {
			path = filepath.Join(dataDir, "academy.db")
		}
		db, err := sqlite.Open(ctx, path, sqlite.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return &Backend{Name: cfg.Backend, KV: sqlite.NewKVStore(db), SQLite: db, close: db.Close}, nil

	case config.BackendRedis:
		rc := redis.DefaultConfig()
		rc.URL = cfg.Redis.URL
		if cfg.Redis.Addr != "" {
			rc.Addr = cfg.Redis.Addr
		}
		rc.Password = cfg.Redis.Password
		rc.DB = cfg.Redis.DB
		if cfg.Redis.KeyPrefix != "" {
			rc.KeyPrefix = cfg.Redis.KeyPrefix
		}
		store, err := redis.Open(ctx, rc)
		if err != nil {
			return nil, err
		}
		return &Backend{Name: cfg.Backend, KV: resilient(store, cfg.Backend, logger), close: store.Close}, nil

	case config.BackendPostgres:
		pc := postgres.DefaultConfig()
		if cfg.Postgres.DSN != "" {
			pc.DSN = cfg.Postgres.DSN
		}
		store, err := postgres.Open(ctx, pc)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Name: cfg.Backend,
			KV:   resilient(store, cfg.Backend, logger),
			close: func() error {
				store.Close()
				return nil
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

func resilient(kv storage.KV, name string, logger *slog.Logger) storage.KV {
	rc := storage.DefaultResilientConfig()
	rc.Logger = logger
	return storage.NewResilientKV(kv, name, rc)
}
