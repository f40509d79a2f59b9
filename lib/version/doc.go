// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information injected with -ldflags.
// Unset variables fall back to "unknown" and "0.1.0-dev" in
// development builds and tests.
package version
