// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/roomgpt/conversation"
	"github.com/bureau-foundation/roomgpt/messaging"
)

// chat runs one chat turn for event. Rooms without a session are
// ignored; the check happens here rather than at routing time so a
// message queued behind "start" is answered.
func (b *Bot) chat(ctx context.Context, logger *slog.Logger, event messaging.Event, content string) {
	session := b.lookup(event.RoomID)
	if session == nil {
		return
	}
	logger = logger.With("user", event.Sender)

	user := b.config.Ledger.Load(ctx, event.Sender)
	if !user.CanSpend() {
		logger.Info("out of credits", "credits", user.Credits)
		if _, err := b.session.React(ctx, event.RoomID, event.EventID, quotaReaction); err != nil {
			logger.Warn("reacting failed", "error", err)
		}
		b.reply(ctx, logger, event, replyNoCredits)
		return
	}

	model := conversation.Model{Name: b.config.Models.Name(user.Model), Tier: user.Model}
	timeout := b.config.Conversation.Limits.Timeout(user.Model)

	b.setTyping(ctx, logger, event.RoomID, true, timeout)
	result := session.Converse(ctx, event.Sender, content, model)
	b.setTyping(ctx, logger, event.RoomID, false, 0)

	if result.Cost > 0 {
		user = b.config.Ledger.Debit(ctx, user, result.Cost)
	}
	logger.Info("chat turn",
		"model", model.Name,
		"tier", string(model.Tier),
		"outcome", result.Outcome.String(),
		"input_tokens", result.Usage.InputTokens,
		"output_tokens", result.Usage.OutputTokens,
		"cost", result.Cost,
		"credits", formatCredits(user),
	)
	b.reply(ctx, logger, event, result.Reply)
}

func (b *Bot) setTyping(ctx context.Context, logger *slog.Logger, roomID string, typing bool, timeout time.Duration) {
	if err := b.session.SetTyping(ctx, roomID, typing, timeout); err != nil {
		logger.Debug("typing notification failed", "typing", typing, "error", err)
	}
}

// rolesFor derives role names from a power level: "admin" at 100 and
// above, "moderator" at 50 and above, and always "power:<level>".
func rolesFor(levels *messaging.PowerLevels, userID string) []string {
	level := levels.UserLevel(userID)
	roles := []string{fmt.Sprintf("power:%d", level)}
	if level >= 100 {
		roles = append(roles, "admin")
	}
	if level >= 50 {
		roles = append(roles, "moderator")
	}
	return roles
}

// roles reads userID's roles in roomID. A failed read yields no roles.
func (b *Bot) roles(ctx context.Context, logger *slog.Logger, roomID, userID string) []string {
	levels, err := b.session.PowerLevels(ctx, roomID)
	if err != nil {
		logger.Warn("reading power levels failed", "error", err)
		return nil
	}
	return rolesFor(levels, userID)
}
