// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil bounds HTTP response reads for the completion and
// Matrix clients. A misbehaving upstream cannot make either client
// buffer more than MaxResponseSize bytes.
package netutil

import (
	"encoding/json"
	"fmt"
	"io"
)

// MaxResponseSize caps any single JSON response body: 32 MiB. A full
// /sync with a long timeline is far smaller.
const MaxResponseSize int64 = 32 << 20

// errorBodyLimit caps the excerpt kept for error messages.
const errorBodyLimit = 4 << 10

// ReadResponse reads at most MaxResponseSize bytes of body.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// DecodeResponse reads a bounded body and JSON-decodes it into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := ReadResponse(body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}

// ErrorBody returns up to 4 KiB of body for an error message. Read
// errors yield whatever was read.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, errorBodyLimit))
	return string(data)
}
