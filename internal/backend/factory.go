package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

const defaultCacheTTL = 5 * time.Minute

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With("component", "backend"),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case PostgresBackend:
		return f.createPostgresBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &BackendResult{Store: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewPostgresRepository(ctx, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
	}
	f.logger.Info("Initialized Postgres backend")
	return &BackendResult{Store: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	f.logger.Info("Initialized memory backend")
	store := memory.New()
	return &BackendResult{Store: store, Cleanup: store.Close}, nil
}

// CreateCache implements Factory.CreateCache
func (f *DefaultFactory) CreateCache(ctx context.Context, config Config) (*CacheResult, error) {
	ttl := config.CacheTTL
	if ttl == 0 {
		ttl = defaultCacheTTL
	}

	if config.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, config.RedisAddr, config.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		f.logger.Info("Initialized Redis insight cache", "addr", config.RedisAddr, "ttl", ttl)
		return &CacheResult{
			Cache:   cache.NewRedisCache[json.RawMessage](rdb, "fintrack:insights", ttl),
			Cleanup: rdb.Close,
		}, nil
	}

	size := config.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	lru := cache.NewLRUCache[json.RawMessage](size, ttl)
	mgr := cache.NewManager(func(removed int) {
		f.logger.Debug("Insight cache sweep", "removed", removed)
	})
	mgr.Register(lru)
	mgr.StartCleanup(ttl)
	f.logger.Info("Initialized in-process insight cache", "size", size, "ttl", ttl)
	return &CacheResult{
		Cache:   lru,
		Manager: mgr,
		Cleanup: func() error {
			mgr.Stop()
			return nil
		},
	}, nil
}
