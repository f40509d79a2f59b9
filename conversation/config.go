// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"errors"
	"log/slog"
	"time"

	"github.com/bureau-foundation/roomgpt/lib/clock"
	"github.com/bureau-foundation/roomgpt/lib/llm"
	llmcontext "github.com/bureau-foundation/roomgpt/lib/llm/context"
)

// Limits are the token, history and timing bounds of a session.
type Limits struct {
	// MaxPromptTokens rejects a single message estimated above it.
	MaxPromptTokens int

	// MaxHistoryMessages and MaxHistoryTokens bound the retained
	// history after every call.
	MaxHistoryMessages int
	MaxHistoryTokens   int

	// MaxHistoryAge clears the history when the previous reply is
	// older than this.
	MaxHistoryAge time.Duration

	// MaxGeneratedTokens caps each reply.
	MaxGeneratedTokens int

	// APITimeout bounds a basic-tier call. Premium calls get
	// APITimeout * PremiumTimeoutFactor.
	APITimeout           time.Duration
	PremiumTimeoutFactor float64
}

// Window returns the history bound as a trimming window.
func (limits Limits) Window() llmcontext.Window {
	return llmcontext.Window{
		MaxMessages: limits.MaxHistoryMessages,
		MaxTokens:   limits.MaxHistoryTokens,
	}
}

// Timeout returns the call bound for tier.
func (limits Limits) Timeout(tier llm.Tier) time.Duration {
	if tier == llm.TierPremium && limits.PremiumTimeoutFactor > 0 {
		return time.Duration(float64(limits.APITimeout) * limits.PremiumTimeoutFactor)
	}
	return limits.APITimeout
}

// Config is shared by every session of a process.
type Config struct {
	// Provider and Estimator are required.
	Provider  llm.Provider
	Estimator llmcontext.TokenEstimator

	Prices llm.PriceTable

	// FeeRate inflates every cost: cost = price * (1 + FeeRate).
	FeeRate float64

	Limits  Limits
	Replies Replies

	// Normalizer rewrites reply text before it is stored. Defaults to
	// IdentityNormalizer.
	Normalizer Normalizer

	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (config *Config) applyDefaults() error {
	if config.Provider == nil {
		return errors.New("conversation: Provider is required")
	}
	if config.Estimator == nil {
		return errors.New("conversation: Estimator is required")
	}
	if config.Limits.APITimeout <= 0 {
		return errors.New("conversation: Limits.APITimeout must be positive")
	}
	if config.Normalizer == nil {
		config.Normalizer = IdentityNormalizer{}
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	config.Replies = config.Replies.withDefaults()
	return nil
}
