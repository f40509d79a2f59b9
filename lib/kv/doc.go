// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package kv is the persistence seam for user records and the channel
// registry.
//
// A [Store] maps string keys to opaque byte values. [Store.Update] is
// the only read-modify-write primitive and is atomic per key in every
// driver:
//
//   - [Memory]: a mutex-guarded map, for tests and ephemeral runs
//   - [File]: one file per key, written with temp file and rename
//   - [SQLite]: one row per key, updated in an immediate transaction
//   - [Redis]: one string per key, updated with WATCH/MULTI
//
// Values are produced by a [Codec] ([JSON] or [CBOR]) and may be
// wrapped with [Compress]. [Open] assembles the configured combination.
package kv
