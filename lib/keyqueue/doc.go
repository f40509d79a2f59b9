// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package keyqueue runs jobs in per-key FIFO order.
//
// Every key with pending work has exactly one worker goroutine. The
// worker runs that key's jobs one at a time in submission order and
// exits when the FIFO is empty, removing the key. Different keys never
// wait on each other. roomgpt keys the queue by room ID, so every
// operation on a room's session is serialized without locks inside the
// session.
package keyqueue
