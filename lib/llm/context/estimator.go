// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package context

import "github.com/bureau-foundation/roomgpt/lib/llm"

// TokenEstimator estimates the prompt tokens a message list costs.
type TokenEstimator interface {
	Estimate(messages []llm.Message) int
}

// Framing is the per-message envelope cost of the chat wire format.
type Framing struct {
	// PerMessage is added once per message
	// (<|start|>{role/name}\n{content}<|end|>\n).
	PerMessage int

	// PerName is added when a message carries a name; the role is
	// then omitted from the envelope, so it is negative.
	PerName int

	// ReplyPriming is added once for the assistant turn the API
	// primes its reply with.
	ReplyPriming int
}

// ChatFraming matches gpt-3.5-turbo and gpt-4 chat models.
var ChatFraming = Framing{PerMessage: 4, PerName: -1, ReplyPriming: 2}

// Estimator is the framed token estimate: for every message the
// framing cost plus the encoded length of role, content and name, plus
// the reply priming once.
type Estimator struct {
	encoding Encoding
	framing  Framing
}

// NewEstimator returns an Estimator using ChatFraming.
func NewEstimator(encoding Encoding) *Estimator {
	return &Estimator{encoding: encoding, framing: ChatFraming}
}

// NewEstimatorWithFraming overrides the framing constants.
func NewEstimatorWithFraming(encoding Encoding, framing Framing) *Estimator {
	return &Estimator{encoding: encoding, framing: framing}
}

// Estimate returns the estimated prompt tokens of messages. An empty
// list still costs the reply priming.
func (estimator *Estimator) Estimate(messages []llm.Message) int {
	total := estimator.framing.ReplyPriming
	for _, message := range messages {
		total += estimator.framing.PerMessage
		total += estimator.encoding.Count(string(message.Role))
		total += estimator.encoding.Count(message.Content)
		if message.Name != "" {
			total += estimator.encoding.Count(message.Name)
			total += estimator.framing.PerName
		}
	}
	return max(total, 0)
}
