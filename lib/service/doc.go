// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the Matrix scaffolding of the bot process:
//
//   - Session persistence: session.json in the state directory holds
//     the homeserver URL, user ID and access token written by login.
//   - Sync loop: incremental Matrix /sync long-poll with backoff,
//     delivering responses to a caller-provided handler.
//   - Invites: joining invited rooms, optionally only from users of
//     allowed homeservers.
//
// The binary composes these in its own run function rather than
// subclassing a framework.
package service
