// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

// Request and response bodies of the client-server endpoints the
// session calls. Only the fields the bot reads are declared.

// LoginRequest is the body of POST /login with a password.
type LoginRequest struct {
	Type                     string          `json:"type"`
	Identifier               *UserIdentifier `json:"identifier,omitempty"`
	Password                 string          `json:"password"`
	InitialDeviceDisplayName string          `json:"initial_device_display_name,omitempty"`
}

// UserIdentifier of type m.id.user. User is a localpart or a full ID.
type UserIdentifier struct {
	Type string `json:"type"`
	User string `json:"user"`
}

// AuthResponse answers a successful login.
type AuthResponse struct {
	UserID      string `json:"user_id"`
	DeviceID    string `json:"device_id"`
	AccessToken string `json:"access_token"`
}

type WhoAmIResponse struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id,omitempty"`
}

type JoinedRoomsResponse struct {
	JoinedRooms []string `json:"joined_rooms"`
}

// SendEventResponse answers PUT /rooms/{room}/send/{type}/{txn}.
type SendEventResponse struct {
	EventID string `json:"event_id"`
}

// TypingRequest is the body of PUT /rooms/{room}/typing/{user}. Timeout
// is in milliseconds and only sent when Typing is true.
type TypingRequest struct {
	Typing  bool  `json:"typing"`
	Timeout int64 `json:"timeout,omitempty"`
}

// PowerLevels is m.room.power_levels content, reduced to user levels.
type PowerLevels struct {
	Users        map[string]int `json:"users"`
	UsersDefault int            `json:"users_default"`
}

// UserLevel returns userID's level, falling back to users_default.
func (levels PowerLevels) UserLevel(userID string) int {
	level, listed := levels.Users[userID]
	if !listed {
		return levels.UsersDefault
	}
	return level
}

// SyncOptions are the query parameters of GET /sync.
type SyncOptions struct {
	// Since is the previous next_batch. Empty requests an initial sync.
	Since string

	// Timeout is the long-poll wait in milliseconds. It is only sent
	// when SetTimeout is true, so that an explicit zero can be told
	// apart from the homeserver default.
	Timeout    int
	SetTimeout bool

	// Filter is a filter ID or an inline JSON filter.
	Filter string
}

// SyncResponse is the part of a /sync response the bot consumes.
type SyncResponse struct {
	NextBatch string       `json:"next_batch"`
	Rooms     RoomsSection `json:"rooms"`
}

// RoomsSection groups rooms by the session's membership. Keys are room
// IDs.
type RoomsSection struct {
	Join   map[string]JoinedRoom  `json:"join,omitempty"`
	Invite map[string]InvitedRoom `json:"invite,omitempty"`
	Leave  map[string]LeftRoom    `json:"leave,omitempty"`
}

type JoinedRoom struct {
	State    StateSection    `json:"state"`
	Timeline TimelineSection `json:"timeline"`
}

// InvitedRoom carries the stripped state an invite exposes, including
// the m.room.member event naming the inviter.
type InvitedRoom struct {
	InviteState StateSection `json:"invite_state"`
}

// LeftRoom appears once after the session leaves or is kicked.
type LeftRoom struct {
	Timeline TimelineSection `json:"timeline"`
}

type TimelineSection struct {
	Events []Event `json:"events"`
	// Limited is set when the homeserver skipped events to honor the
	// filter's timeline limit.
	Limited bool `json:"limited"`
}

type StateSection struct {
	Events []Event `json:"events"`
}
