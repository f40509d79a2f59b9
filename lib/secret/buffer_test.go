// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewRejectsNonPositiveSize(t *testing.T) {
	t.Parallel()
	for _, size := range []int{0, -1} {
		if _, err := New(size); err == nil {
			t.Errorf("New(%d) succeeded, want error", size)
		}
	}
}

func TestNewFromBytesZerosSource(t *testing.T) {
	t.Parallel()
	source := []byte("sk-test-key")
	buffer, err := NewFromBytes(source)
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer buffer.Close()

	if got := buffer.String(); got != "sk-test-key" {
		t.Errorf("String() = %q, want %q", got, "sk-test-key")
	}
	for index, value := range source {
		if value != 0 {
			t.Fatalf("source[%d] = %d, want 0", index, value)
		}
	}
}

func TestCloseIsIdempotentAndPanicsOnRead(t *testing.T) {
	t.Parallel()
	buffer, err := NewFromBytes([]byte("token"))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if buffer.Len() != 0 {
		t.Errorf("Len() after Close = %d, want 0", buffer.Len())
	}

	defer func() {
		if recover() == nil {
			t.Error("Bytes() after Close did not panic")
		}
	}()
	buffer.Bytes()
}

func TestReadFileTrimsWhitespace(t *testing.T) {
	t.Parallel()
	directory := t.TempDir()

	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{name: "plain", content: "sk-abc", want: "sk-abc"},
		{name: "newline", content: "sk-abc\n", want: "sk-abc"},
		{name: "padded", content: "  sk-abc \n", want: "sk-abc"},
		{name: "blank", content: " \n", wantErr: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(directory, test.name)
			if err := os.WriteFile(path, []byte(test.content), 0o600); err != nil {
				t.Fatal(err)
			}
			buffer, err := ReadFile(path)
			if test.wantErr {
				if err == nil {
					buffer.Close()
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			defer buffer.Close()
			if got := buffer.String(); got != test.want {
				t.Errorf("got %q, want %q", got, test.want)
			}
		})
	}
}

func TestReadFileMissing(t *testing.T) {
	t.Parallel()
	if _, err := ReadFile(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// Not parallel: mutates the process environment.
func TestFromEnvUnsetsVariable(t *testing.T) {
	t.Setenv("ROOMGPT_TEST_SECRET", " sk-env \n")

	buffer, err := FromEnv("ROOMGPT_TEST_SECRET")
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	defer buffer.Close()

	if got := buffer.String(); got != "sk-env" {
		t.Errorf("got %q, want %q", got, "sk-env")
	}
	if _, ok := os.LookupEnv("ROOMGPT_TEST_SECRET"); ok {
		t.Error("variable still set after FromEnv")
	}
	if _, err := FromEnv("ROOMGPT_TEST_SECRET"); err == nil {
		t.Error("expected error for unset variable")
	}
}
