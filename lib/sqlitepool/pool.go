// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// DefaultPoolSize is used when Config.PoolSize is not positive. Writes
// are serialized by SQLite anyway; extra connections serve concurrent
// reads from different rooms.
const DefaultPoolSize = 4

// Config describes a pool.
type Config struct {
	// Path is the database file; its directory must exist.
	// ":memory:" gives each connection a private database, so use it
	// only with PoolSize 1.
	Path string

	PoolSize int

	// Logger defaults to a discarding logger.
	Logger *slog.Logger

	// OnConnect runs once per connection after the pragmas, typically
	// to create the schema.
	OnConnect func(conn *sqlite.Conn) error
}

// Pool is a fixed-size set of prepared connections. Safe for
// concurrent use; the connections themselves are not.
type Pool struct {
	inner  *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// pragmas are applied to every connection in order.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA temp_store=MEMORY",
}

// Open creates the pool. Connections are prepared lazily on first Take.
func Open(config Config) (*Pool, error) {
	if config.Path == "" {
		return nil, errors.New("sqlitepool: Path is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	poolSize := config.PoolSize
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}

	inner, err := sqlitex.NewPool(config.Path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			for _, pragma := range pragmas {
				if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
					return fmt.Errorf("sqlitepool: %s: %w", pragma, err)
				}
			}
			if config.OnConnect != nil {
				if err := config.OnConnect(conn); err != nil {
					return fmt.Errorf("sqlitepool: OnConnect: %w", err)
				}
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: opening %s: %w", config.Path, err)
	}
	logger.Debug("sqlite pool opened", "path", config.Path, "pool_size", poolSize)
	return &Pool{inner: inner, logger: logger, path: config.Path}, nil
}

// Take borrows a connection, blocking until one is free or ctx is done.
func (pool *Pool) Take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := pool.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: take: %w", err)
	}
	return conn, nil
}

// Put returns a borrowed connection. Put(nil) is a no-op.
func (pool *Pool) Put(conn *sqlite.Conn) {
	pool.inner.Put(conn)
}

// Close waits for borrowed connections and closes them all.
func (pool *Pool) Close() error {
	if err := pool.inner.Close(); err != nil {
		return fmt.Errorf("sqlitepool: closing %s: %w", pool.path, err)
	}
	pool.logger.Debug("sqlite pool closed", "path", pool.path)
	return nil
}
