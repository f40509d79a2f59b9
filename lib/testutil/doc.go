// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared helpers for roomgpt tests.
//
// [RequireReceive], [RequireNoReceive] and [RequireClosed] wrap the
// select-with-timeout pattern used when a test waits on a queue worker
// or a fake homeserver. They are the only place tests touch the wall
// clock.
//
// [Logger] returns a slog.Logger that writes through t.Log so job and
// sync logs show up only for failing tests.
//
// [UniqueID] generates distinct room, user and transaction identifiers.
package testutil
