package backend

import (
	"context"
	"encoding/json"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store and an optional cleanup function
type BackendResult struct {
	Store   storage.Store
	Cleanup CleanupFunc
}

// CacheResult carries the insight cache and, for the local LRU, the
// manager sweeping its expired entries.
type CacheResult struct {
	Cache   cache.Cache[json.RawMessage]
	Manager *cache.Manager
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend opens the ledger store selected by config.Type
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// CreateCache returns a Redis cache when RedisAddr is set, else an LRU
	CreateCache(ctx context.Context, config Config) (*CacheResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	DatabaseURL string

	// Cache
	RedisAddr     string
	RedisPassword string
	CacheTTL      time.Duration
	CacheSize     int
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
