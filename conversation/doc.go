// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package conversation is the per-room session engine.
//
// A [Session] owns one room's system prompt, its bounded
// user/assistant history and the time of its last successful reply.
// [Session.Converse] is the only operation that calls the completion
// API:
//
//   - an oversized prompt is answered locally and never reaches the API
//   - history older than the age limit is dropped as a whole
//   - the new message is appended and the history is trimmed to the
//     message and token window
//   - the call runs under a per-tier timeout
//   - success appends the normalized reply and prices the usage
//   - failure restores the history exactly as it was before the call
//
// Sessions hold no locks. Callers guarantee that at most one
// operation runs on a given Session at a time; the bot does this by
// routing every operation through the room's queue.
package conversation
