// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"log/slog"
	"strings"
	"testing"
)

// Logger returns a debug-level text logger that writes through t.Log.
func Logger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testWriter struct {
	t testing.TB
}

func (writer testWriter) Write(data []byte) (int, error) {
	writer.t.Log(strings.TrimRight(string(data), "\n"))
	return len(data), nil
}
