// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds credentials (the completion API key and the
// Matrix access token) in memory that the garbage collector never sees.
//
// A [Buffer] is an anonymous mmap region locked into RAM and excluded
// from core dumps. Close zeros and unmaps it. Values enter through
// [NewFromBytes], [ReadFile] or [FromEnv]; each of them zeros the
// intermediate heap copy it read from.
package secret
