// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/bureau-foundation/roomgpt/lib/clock"
	"github.com/bureau-foundation/roomgpt/messaging"
)

// Defaults for a zero SyncConfig.
const (
	defaultSyncTimeout = 30000
	defaultMaxBackoff  = 30 * time.Second
	initialBackoff     = time.Second
)

// SyncConfig configures the /sync long-poll loop.
type SyncConfig struct {
	// Filter is an inline JSON filter.
	Filter string

	// Timeout is how long, in milliseconds, the homeserver may hold an
	// empty poll open. Zero means 30000.
	Timeout int

	// MaxBackoff caps the doubling retry delay after a failed poll.
	// Zero means 30s.
	MaxBackoff time.Duration
}

func (c SyncConfig) withDefaults() SyncConfig {
	if c.Timeout == 0 {
		c.Timeout = defaultSyncTimeout
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	return c
}

// SyncHandler receives each /sync response. The next poll waits for it
// to return.
type SyncHandler func(ctx context.Context, response *messaging.SyncResponse)

// InitialSync performs the first /sync, which returns at once with the
// current state. The caller gets the token to continue from and the
// response, whose timeline it usually discards.
func InitialSync(ctx context.Context, session messaging.Session, filter string) (string, *messaging.SyncResponse, error) {
	response, err := session.Sync(ctx, messaging.SyncOptions{Filter: filter})
	if err != nil {
		return "", nil, fmt.Errorf("initial sync: %w", err)
	}
	return response.NextBatch, response, nil
}

// RunSyncLoop long-polls /sync from since and hands every response to
// handler until ctx is done. A failed poll is retried after a delay that
// starts at one second and doubles up to config.MaxBackoff; a rate
// limit that asks for longer is honored.
func RunSyncLoop(ctx context.Context, session messaging.Session, config SyncConfig, since string, handler SyncHandler, clk clock.Clock, logger *slog.Logger) {
	config = config.withDefaults()
	backoff := initialBackoff

	for ctx.Err() == nil {
		response, err := session.Sync(ctx, messaging.SyncOptions{
			Since:      since,
			Timeout:    config.Timeout,
			SetTimeout: true,
			Filter:     config.Filter,
		})
		if err == nil {
			backoff = initialBackoff
			since = response.NextBatch
			handler(ctx, response)
			continue
		}
		if ctx.Err() != nil {
			return
		}

		delay := max(backoff, messaging.RetryAfter(err))
		logger.Error("sync failed, retrying", "error", err, "backoff", delay)
		// A poll that died mid-flight may leave a poisoned pooled connection.
		if pooled, ok := session.(interface{ CloseIdleConnections() }); ok {
			pooled.CloseIdleConnections()
		}
		select {
		case <-ctx.Done():
			return
		case <-clk.After(delay):
		}
		backoff = min(backoff*2, config.MaxBackoff)
	}
}

// Inviter returns the user who invited the session's user, read from
// the stripped m.room.member state of an invite.
func Inviter(invite messaging.InvitedRoom, userID string) string {
	for _, event := range invite.InviteState.Events {
		if event.Type == messaging.EventTypeMember && event.StateKey != nil &&
			*event.StateKey == userID && event.Membership() == "invite" {
			return event.Sender
		}
	}
	return ""
}

// AcceptInvites joins the rooms the session has been invited to and
// returns the IDs of those joined. When allowedServers is non-empty,
// invites from users on other homeservers are rejected.
func AcceptInvites(ctx context.Context, session messaging.Session, invites map[string]messaging.InvitedRoom, allowedServers []string, logger *slog.Logger) []string {
	var accepted []string
	for roomID, invite := range invites {
		inviter := Inviter(invite, session.UserID())
		if len(allowedServers) > 0 && !slices.Contains(allowedServers, messaging.ServerName(inviter)) {
			logger.Warn("rejecting invite from disallowed server",
				"room_id", roomID,
				"inviter", inviter,
			)
			if err := session.LeaveRoom(ctx, roomID); err != nil {
				logger.Error("failed to reject room invite", "room_id", roomID, "error", err)
			}
			continue
		}

		logger.Info("accepting room invite", "room_id", roomID, "inviter", inviter)
		if _, err := session.JoinRoom(ctx, roomID); err != nil {
			logger.Error("failed to accept room invite",
				"room_id", roomID,
				"error", err,
			)
			continue
		}
		accepted = append(accepted, roomID)
	}
	return accepted
}
