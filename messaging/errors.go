// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"errors"
	"fmt"
	"time"
)

// Error codes from the client-server API that callers branch on.
const (
	ErrCodeForbidden     = "M_FORBIDDEN"
	ErrCodeUnknownToken  = "M_UNKNOWN_TOKEN"
	ErrCodeNotFound      = "M_NOT_FOUND"
	ErrCodeLimitExceeded = "M_LIMIT_EXCEEDED"
	ErrCodeUnknown       = "M_UNKNOWN"
)

// MatrixError is the standard error body a homeserver returns with a
// non-2xx status. Use errors.As or [ErrorCode] to inspect it.
type MatrixError struct {
	Code    string `json:"errcode"`
	Message string `json:"error"`

	// RetryAfterMS accompanies M_LIMIT_EXCEEDED.
	RetryAfterMS int64 `json:"retry_after_ms,omitempty"`

	StatusCode int `json:"-"`
}

func (e *MatrixError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("matrix: %s (HTTP %d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("matrix: %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
}

// RetryAfter is the wait the homeserver asked for, or zero.
func (e *MatrixError) RetryAfter() time.Duration {
	return time.Duration(e.RetryAfterMS) * time.Millisecond
}

// ErrorCode returns the Matrix error code carried by err, or "" when
// err did not come from the homeserver.
func ErrorCode(err error) string {
	var matrixErr *MatrixError
	if errors.As(err, &matrixErr) {
		return matrixErr.Code
	}
	return ""
}

// IsMatrixError reports whether err carries the given error code.
func IsMatrixError(err error, code string) bool {
	return code != "" && ErrorCode(err) == code
}

// RetryAfter returns the homeserver's requested wait when err is a
// rate limit, or zero.
func RetryAfter(err error) time.Duration {
	var matrixErr *MatrixError
	if errors.As(err, &matrixErr) && matrixErr.Code == ErrCodeLimitExceeded {
		return matrixErr.RetryAfter()
	}
	return 0
}
