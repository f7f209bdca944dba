// Package store provides the key-value persistence backends used by the
// prediction tracker. Every backend stores opaque string values under string
// keys; the tracker keeps its whole collection under a single key.
//
// Backends:
//   - memory:   process-local map, for tests and local development
//   - postgres: a kv_entries table reached through pgx
//   - pebble:   an embedded Pebble database directory
//   - sqlite:   an embedded SQLite file (pure Go driver)
package store

import (
	"context"
	"fmt"
	"log/slog"
)

// KV is the persistence contract shared by all backends.
type KV interface {
	// Get returns the value under key. found is false when the key is absent;
	// absence is not an error.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing an absent key succeeds.
	Remove(ctx context.Context, key string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendPebble   = "pebble"
	BackendSQLite   = "sqlite"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	// Path is the directory (pebble) or file (sqlite) location.
	Path string
	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string
	// MaxConns bounds the PostgreSQL pool.
	MaxConns int32
	Logger   *slog.Logger
}

// Open creates the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (KV, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch opts.Backend {
	case "", BackendMemory:
		logger.Info("using in-memory prediction store")
		return NewMemory(), nil
	case BackendPostgres:
		kv, err := OpenPostgres(ctx, opts.DatabaseURL, opts.MaxConns, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("using postgres prediction store")
		return kv, nil
	case BackendPebble:
		kv, err := OpenPebble(opts.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("using pebble prediction store", "path", opts.Path)
		return kv, nil
	case BackendSQLite:
		kv, err := OpenSQLite(ctx, opts.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("using sqlite prediction store", "path", opts.Path)
		return kv, nil
	default:
		return nil, fmt.Errorf("store: unknown backend %q", opts.Backend)
	}
}
