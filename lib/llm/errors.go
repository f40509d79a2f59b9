// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"errors"
	"net"
)

// ErrorKind is the failure class of a completion call.
type ErrorKind int

const (
	// KindRateLimit: the provider is over capacity or the key is
	// over quota. Retry later.
	KindRateLimit ErrorKind = iota + 1

	// KindCallTimeout: the caller's own bound on the call expired.
	KindCallTimeout

	// KindUpstreamTimeout: the provider or a gateway in front of it
	// gave up waiting, or never started answering.
	KindUpstreamTimeout

	// KindOther: transport failures, malformed responses and every
	// other error.
	KindOther
)

func (kind ErrorKind) String() string {
	switch kind {
	case KindRateLimit:
		return "rate_limit"
	case KindCallTimeout:
		return "call_timeout"
	case KindUpstreamTimeout:
		return "upstream_timeout"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

// Classify maps a non-nil error from a Provider to its ErrorKind.
// Checks run most specific first:
//
//  1. *ProviderError rate limit (HTTP 429 or rate_limit_exceeded)
//  2. context.DeadlineExceeded (the caller's timeout)
//  3. *ProviderError 408/504, or a net.Error reporting Timeout
//  4. anything else
//
// The deadline check precedes the net.Error check because *url.Error
// wrapping a context deadline also reports Timeout.
func Classify(err error) ErrorKind {
	var providerError *ProviderError
	isProviderError := errors.As(err, &providerError)

	if isProviderError && providerError.IsRateLimited() {
		return KindRateLimit
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindCallTimeout
	}
	if isProviderError && providerError.IsUpstreamTimeout() {
		return KindUpstreamTimeout
	}
	var netError net.Error
	if errors.As(err, &netError) && netError.Timeout() {
		return KindUpstreamTimeout
	}
	return KindOther
}
