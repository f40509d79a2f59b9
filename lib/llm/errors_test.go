// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
)

// timeoutError is a net.Error reporting a transport timeout.
type timeoutError struct{}

func (timeoutError) Error() string   { return "net/http: timeout awaiting response headers" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{
			name: "429",
			err:  &ProviderError{StatusCode: 429, Message: "slow down"},
			want: KindRateLimit,
		},
		{
			name: "rate limit type wins over deadline",
			err:  fmt.Errorf("wrapped: %w", errors.Join(&ProviderError{StatusCode: 400, Type: "rate_limit_exceeded"}, context.DeadlineExceeded)),
			want: KindRateLimit,
		},
		{
			name: "own deadline",
			err:  fmt.Errorf("llm/openai: sending request: %w", &url.Error{Op: "Post", URL: "http://x", Err: context.DeadlineExceeded}),
			want: KindCallTimeout,
		},
		{
			name: "408",
			err:  &ProviderError{StatusCode: 408},
			want: KindUpstreamTimeout,
		},
		{
			name: "504",
			err:  &ProviderError{StatusCode: 504},
			want: KindUpstreamTimeout,
		},
		{
			name: "transport timeout",
			err:  &url.Error{Op: "Post", URL: "http://x", Err: timeoutError{}},
			want: KindUpstreamTimeout,
		},
		{
			name: "server error",
			err:  &ProviderError{StatusCode: 500, Message: "boom"},
			want: KindOther,
		},
		{
			name: "canceled",
			err:  context.Canceled,
			want: KindOther,
		},
		{
			name: "plain",
			err:  errors.New("connection refused"),
			want: KindOther,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(test.err); got != test.want {
				t.Errorf("Classify(%v) = %v, want %v", test.err, got, test.want)
			}
		})
	}
}

func TestErrorKindString(t *testing.T) {
	t.Parallel()
	for kind, want := range map[ErrorKind]string{
		KindRateLimit:       "rate_limit",
		KindCallTimeout:     "call_timeout",
		KindUpstreamTimeout: "upstream_timeout",
		KindOther:           "other",
		ErrorKind(0):        "unknown",
	} {
		if got := kind.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(kind), got, want)
		}
	}
}
