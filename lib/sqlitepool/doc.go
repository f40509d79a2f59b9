// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens the SQLite connection pool behind the
// sqlite state store.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool and applies one set
// of pragmas to every connection: WAL journaling, NORMAL synchronous,
// a 5 second busy timeout and in-memory temp storage. Callers Take a
// connection, use it from one goroutine, and Put it back.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:      filepath.Join(stateDir, "roomgpt.db"),
//	    OnConnect: createSchema,
//	})
package sqlitepool
