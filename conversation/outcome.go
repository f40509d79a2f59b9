// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import "github.com/bureau-foundation/roomgpt/lib/llm"

// Outcome is how a Converse call ended.
type Outcome int

const (
	OutcomeReplied Outcome = iota
	OutcomeTooLong
	OutcomeRateLimited
	OutcomeCallTimeout
	OutcomeUpstreamTimeout
	OutcomeFailed
)

func (outcome Outcome) String() string {
	switch outcome {
	case OutcomeReplied:
		return "replied"
	case OutcomeTooLong:
		return "too_long"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeCallTimeout:
		return "call_timeout"
	case OutcomeUpstreamTimeout:
		return "upstream_timeout"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// outcomeFor maps a completion failure class to its outcome.
func outcomeFor(kind llm.ErrorKind) Outcome {
	switch kind {
	case llm.KindRateLimit:
		return OutcomeRateLimited
	case llm.KindCallTimeout:
		return OutcomeCallTimeout
	case llm.KindUpstreamTimeout:
		return OutcomeUpstreamTimeout
	case llm.KindOther:
		return OutcomeFailed
	}
	return OutcomeFailed
}

// Replies are the fixed texts returned instead of a model reply. Empty
// fields take the defaults.
type Replies struct {
	TooLong         string `yaml:"too_long"`
	RateLimited     string `yaml:"rate_limited"`
	CallTimeout     string `yaml:"call_timeout"`
	UpstreamTimeout string `yaml:"upstream_timeout"`
	Failed          string `yaml:"failed"`
}

// DefaultReplies is used for every empty field of Replies.
var DefaultReplies = Replies{
	TooLong:         "Nobody is going to read all of that. Please keep it shorter.",
	RateLimited:     "```The service is over capacity right now. Please wait a while and try again.```",
	CallTimeout:     "```Dispatching the API call took too long. Please try again, and tell the administrator if it keeps happening. (call timeout)```",
	UpstreamTimeout: "```The API took too long to answer. Please try again, and tell the administrator if it keeps happening. (upstream timeout)```",
	Failed:          "```Something went wrong while answering. Please try again, and tell the administrator if it keeps happening.```",
}

func (replies Replies) withDefaults() Replies {
	fill := func(value *string, fallback string) {
		if *value == "" {
			*value = fallback
		}
	}
	fill(&replies.TooLong, DefaultReplies.TooLong)
	fill(&replies.RateLimited, DefaultReplies.RateLimited)
	fill(&replies.CallTimeout, DefaultReplies.CallTimeout)
	fill(&replies.UpstreamTimeout, DefaultReplies.UpstreamTimeout)
	fill(&replies.Failed, DefaultReplies.Failed)
	return replies
}

// For returns the fixed text for a non-replied outcome.
func (replies Replies) For(outcome Outcome) string {
	switch outcome {
	case OutcomeTooLong:
		return replies.TooLong
	case OutcomeRateLimited:
		return replies.RateLimited
	case OutcomeCallTimeout:
		return replies.CallTimeout
	case OutcomeUpstreamTimeout:
		return replies.UpstreamTimeout
	default:
		return replies.Failed
	}
}
