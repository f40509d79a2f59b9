// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kv

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/roomgpt/lib/sqlitepool"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
) WITHOUT ROWID`

// SQLite stores every key as a row of one table.
type SQLite struct {
	pool *sqlitepool.Pool
}

// NewSQLite opens (creating if needed) the database at path.
func NewSQLite(path string, logger *slog.Logger) (*SQLite, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   path,
		Logger: logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteTransient(conn, sqliteSchema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("kv/sqlite: %w", err)
	}
	return &SQLite{pool: pool}, nil
}

func (store *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	conn, err := store.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("kv/sqlite: %w", err)
	}
	defer store.pool.Put(conn)

	value, found, err := sqliteGet(conn, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return value, nil
}

func (store *SQLite) Put(ctx context.Context, key string, value []byte) error {
	conn, err := store.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("kv/sqlite: %w", err)
	}
	defer store.pool.Put(conn)
	return sqlitePut(conn, key, value)
}

func (store *SQLite) Delete(ctx context.Context, key string) error {
	conn, err := store.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("kv/sqlite: %w", err)
	}
	defer store.pool.Put(conn)
	return sqliteDelete(conn, key)
}

// Update runs the read and the write inside one BEGIN IMMEDIATE
// transaction, so concurrent writers (including other processes)
// queue on the database write lock.
func (store *SQLite) Update(ctx context.Context, key string, fn UpdateFunc) (err error) {
	conn, err := store.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("kv/sqlite: %w", err)
	}
	defer store.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("kv/sqlite: begin: %w", err)
	}
	defer endTransaction(&err)

	current, found, err := sqliteGet(conn, key)
	if err != nil {
		return err
	}
	next, err := fn(current, found)
	if err != nil {
		return err
	}
	if next == nil {
		return sqliteDelete(conn, key)
	}
	return sqlitePut(conn, key, next)
}

func (store *SQLite) Close() error {
	return store.pool.Close()
}

func sqliteGet(conn *sqlite.Conn, key string) ([]byte, bool, error) {
	var (
		value []byte
		found bool
	)
	err := sqlitex.Execute(conn, "SELECT value FROM kv WHERE key = ?", &sqlitex.ExecOptions{
		Args: []any{key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			value = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, value)
			found = true
			return nil
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("kv/sqlite: get %s: %w", key, err)
	}
	return value, found, nil
}

func sqlitePut(conn *sqlite.Conn, key string, value []byte) error {
	err := sqlitex.Execute(conn,
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		&sqlitex.ExecOptions{Args: []any{key, value}})
	if err != nil {
		return fmt.Errorf("kv/sqlite: put %s: %w", key, err)
	}
	return nil
}

func sqliteDelete(conn *sqlite.Conn, key string) error {
	if err := sqlitex.Execute(conn, "DELETE FROM kv WHERE key = ?", &sqlitex.ExecOptions{Args: []any{key}}); err != nil {
		return fmt.Errorf("kv/sqlite: delete %s: %w", key, err)
	}
	return nil
}
