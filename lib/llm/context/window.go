// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package context

import "github.com/bureau-foundation/roomgpt/lib/llm"

// Window bounds a history by message count and estimated tokens. A
// zero field disables that bound.
type Window struct {
	MaxMessages int
	MaxTokens   int
}

// Trim drops messages from the oldest end, one at a time, until both
// bounds hold. It does not keep user/assistant pairs together. The
// result shares history's backing array.
func (window Window) Trim(history []llm.Message, estimator TokenEstimator) []llm.Message {
	for len(history) > 0 && window.exceeded(history, estimator) {
		history = history[1:]
	}
	return history
}

// Fits reports whether history is within both bounds.
func (window Window) Fits(history []llm.Message, estimator TokenEstimator) bool {
	return !window.exceeded(history, estimator)
}

func (window Window) exceeded(history []llm.Message, estimator TokenEstimator) bool {
	if window.MaxMessages > 0 && len(history) > window.MaxMessages {
		return true
	}
	return window.MaxTokens > 0 && estimator.Estimate(history) > window.MaxTokens
}
