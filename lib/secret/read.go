// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"fmt"
	"os"
)

// ReadFile loads a secret from path, trimming surrounding whitespace.
// An empty or whitespace-only file is an error.
func ReadFile(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("secret: reading %s: %w", path, err)
	}
	defer Zero(data)

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("secret: %s is empty", path)
	}
	return NewFromBytes(trimmed)
}

// FromEnv loads a secret from the named environment variable and
// unsets it so child processes do not inherit it.
func FromEnv(name string) (*Buffer, error) {
	value, ok := os.LookupEnv(name)
	if !ok {
		return nil, fmt.Errorf("secret: environment variable %s is not set", name)
	}
	os.Unsetenv(name)

	data := bytes.TrimSpace([]byte(value))
	if len(data) == 0 {
		return nil, fmt.Errorf("secret: environment variable %s is empty", name)
	}
	return NewFromBytes(data)
}
