// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"time"
)

// Session is the set of Matrix operations the bot and the sync loop
// use. *DirectSession is the production implementation; tests supply
// fakes.
//
// Operator-only methods (AccessToken, DeviceID, HomeserverURL) are not
// part of this interface. Code that needs them should type-assert to
// *DirectSession.
type Session interface {
	// UserID returns the fully-qualified Matrix user ID.
	UserID() string

	// Close releases any resources held by the session. Idempotent.
	Close() error

	// WhoAmI validates the session and returns the user ID.
	WhoAmI(ctx context.Context) (string, error)

	// JoinRoom joins a room by room ID. Returns the room ID.
	JoinRoom(ctx context.Context, roomID string) (string, error)

	// LeaveRoom leaves a room or rejects an invite.
	LeaveRoom(ctx context.Context, roomID string) error

	// JoinedRooms returns the list of room IDs the user has joined.
	JoinedRooms(ctx context.Context) ([]string, error)

	// SendMessage sends a message to a room. Returns the event ID.
	SendMessage(ctx context.Context, roomID string, content MessageContent) (string, error)

	// React annotates an event. Returns the reaction's event ID.
	React(ctx context.Context, roomID, eventID, key string) (string, error)

	// SetTyping starts or stops the typing notification.
	SetTyping(ctx context.Context, roomID string, typing bool, timeout time.Duration) error

	// GetStateEvent fetches a specific state event's content from a room.
	GetStateEvent(ctx context.Context, roomID, eventType, stateKey string) (json.RawMessage, error)

	// PowerLevels reads the room's power levels.
	PowerLevels(ctx context.Context, roomID string) (*PowerLevels, error)

	// Sync performs an incremental sync with the homeserver.
	Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error)
}

// Compile-time check: *DirectSession implements Session.
var _ Session = (*DirectSession)(nil)
