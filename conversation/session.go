// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/bureau-foundation/roomgpt/lib/llm"
)

// Model is the concrete model a call runs on and the tier it bills as.
type Model struct {
	Name string
	Tier llm.Tier
}

// Result is the outcome of one Converse call.
type Result struct {
	// Reply is the text to post: the normalized model reply, or the
	// fixed text for a failure outcome.
	Reply string

	// Cost is the fee-inflated price of the call. Zero unless
	// Outcome is OutcomeReplied.
	Cost float64

	Outcome Outcome
	Usage   llm.Usage
}

// Session is one room's conversation. It is not safe for concurrent
// use.
type Session struct {
	config Config

	systemPrompt string
	history      []llm.Message
	lastActivity time.Time
}

// NewSession creates a session with an empty history. The age clock
// starts now.
func NewSession(config Config, systemPrompt string) (*Session, error) {
	if err := config.applyDefaults(); err != nil {
		return nil, err
	}
	return &Session{
		config:       config,
		systemPrompt: systemPrompt,
		lastActivity: config.Clock.Now(),
	}, nil
}

// Converse sends content from userID to model with the current system
// prompt and history. The history grows by one exchange on success and
// is unchanged by any other outcome.
func (session *Session) Converse(ctx context.Context, userID, content string, model Model) Result {
	config := &session.config
	logger := config.Logger.With("user", userID, "model", model.Name, "tier", string(model.Tier))

	prompt := llm.UserMessage(content)
	if tokens := config.Estimator.Estimate([]llm.Message{prompt}); tokens > config.Limits.MaxPromptTokens {
		logger.Info("prompt rejected", "tokens", tokens, "limit", config.Limits.MaxPromptTokens)
		return Result{Reply: config.Replies.TooLong, Outcome: OutcomeTooLong}
	}

	snapshot := slices.Clone(session.history)

	if elapsed := config.Clock.Now().Sub(session.lastActivity); elapsed > config.Limits.MaxHistoryAge && len(session.history) > 0 {
		logger.Debug("history expired", "idle", elapsed, "messages", len(session.history))
		session.history = nil
	}

	window := config.Limits.Window()
	session.history = window.Trim(append(session.history, prompt), config.Estimator)

	timeout := config.Limits.Timeout(model.Tier)
	callContext, cancel := context.WithTimeout(ctx, timeout)
	response, err := config.Provider.Complete(callContext, llm.Request{
		Model:     model.Name,
		System:    session.systemPrompt,
		Messages:  slices.Clone(session.history),
		MaxTokens: config.Limits.MaxGeneratedTokens,
		User:      userID,
	})
	cancel()

	if err != nil {
		session.history = snapshot
		kind := llm.Classify(err)
		outcome := outcomeFor(kind)
		level := slog.LevelWarn
		if kind == llm.KindOther {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "completion failed",
			"outcome", outcome.String(),
			"timeout", timeout,
			"error", err,
		)
		return Result{Reply: config.Replies.For(outcome), Outcome: outcome}
	}

	price, known := config.Prices.Cost(model.Name, response.Usage)
	if !known {
		logger.Warn("no price for model, completion is free", "served_by", response.Model)
	}
	cost := price * (1 + config.FeeRate)

	reply := config.Normalizer.Normalize(response.Text)
	session.history = window.Trim(append(session.history, llm.AssistantMessage(reply)), config.Estimator)
	session.lastActivity = config.Clock.Now()

	logger.Info("completion",
		"outcome", OutcomeReplied.String(),
		"input_tokens", response.Usage.InputTokens,
		"output_tokens", response.Usage.OutputTokens,
		"cost", cost,
		"stop_reason", string(response.StopReason),
		"history", len(session.history),
	)
	return Result{Reply: reply, Cost: cost, Outcome: OutcomeReplied, Usage: response.Usage}
}

// Forget removes the last n exchanges (2n messages, or everything if
// the history is shorter). n <= 0 clears the history. It returns the
// number of messages removed.
func (session *Session) Forget(n int) int {
	before := len(session.history)
	if n <= 0 || 2*n >= before {
		session.history = nil
		return before
	}
	session.history = slices.Clone(session.history[:before-2*n])
	return 2 * n
}

// SystemPrompt returns the prompt sent ahead of the history.
func (session *Session) SystemPrompt() string {
	return session.systemPrompt
}

// SetSystemPrompt replaces the prompt for every later call. The
// history is kept.
func (session *Session) SetSystemPrompt(prompt string) {
	session.systemPrompt = prompt
}

// History returns a copy of the retained messages, oldest first.
func (session *Session) History() []llm.Message {
	return slices.Clone(session.history)
}

// Len returns the number of retained messages.
func (session *Session) Len() int {
	return len(session.history)
}

// LastActivity is the time of the last successful reply, or of the
// session's creation.
func (session *Session) LastActivity() time.Time {
	return session.lastActivity
}
