// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging wraps the parts of the Matrix client-server API a
// chat bot needs.
//
// [Client] is an unauthenticated Matrix client that performs password
// login and restores sessions from stored access tokens. It holds the
// homeserver URL and HTTP transport.
//
// [DirectSession] adds an access token for authenticated operations:
// joining and leaving rooms, sending messages, reactions and typing
// notifications, reading state events such as power levels, and
// incremental sync with long-polling. The access token lives in
// mmap-backed secret.Buffer memory; callers must call Close to release
// it. [Session] is the interface the bot programs against, so tests can
// substitute a fake.
//
// All API errors are returned as [*MatrixError] with the standard
// Matrix error code (M_FORBIDDEN, M_NOT_FOUND, etc.) and HTTP status
// code. [IsMatrixError] tests for a specific error code.
//
// Replies are threaded: [NewThreadReply] answers an event inside the
// thread it belongs to. [RenderMarkdown] converts model output to the
// org.matrix.custom.html format.
package messaging
