// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import "strings"

// Event types the bot sends or reads.
const (
	EventTypeMessage     = "m.room.message"
	EventTypeReaction    = "m.reaction"
	EventTypeMember      = "m.room.member"
	EventTypePowerLevels = "m.room.power_levels"
)

// msgTypeText is the msgtype of every message the bot sends.
const msgTypeText = "m.text"

// Event is a room event as delivered by /sync. Content is left
// undecoded; the accessors below read the keys the bot cares about.
type Event struct {
	EventID  string         `json:"event_id"`
	Type     string         `json:"type"`
	Sender   string         `json:"sender"`
	StateKey *string        `json:"state_key,omitempty"`
	Content  map[string]any `json:"content"`

	// RoomID is absent from /sync timelines. The bot fills it in from
	// the enclosing map key.
	RoomID string `json:"room_id,omitempty"`
}

func (event Event) text(key string) string {
	if value, ok := event.Content[key].(string); ok {
		return value
	}
	return ""
}

// relation returns the rel_type and event_id of content.m.relates_to.
func (event Event) relation() (relType, eventID string) {
	relatesTo, _ := event.Content["m.relates_to"].(map[string]any)
	relType, _ = relatesTo["rel_type"].(string)
	eventID, _ = relatesTo["event_id"].(string)
	return relType, eventID
}

// Body returns content.body, or "" when it is missing or not a string.
func (event Event) Body() string { return event.text("body") }

func (event Event) MsgType() string { return event.text("msgtype") }

// Membership returns content.membership of an m.room.member event.
func (event Event) Membership() string { return event.text("membership") }

// IsEdit reports an m.replace relation.
func (event Event) IsEdit() bool {
	relType, _ := event.relation()
	return relType == "m.replace"
}

// ThreadRoot returns the thread the event was posted in. An event
// outside any thread roots its own.
func (event Event) ThreadRoot() string {
	if relType, root := event.relation(); relType == "m.thread" && root != "" {
		return root
	}
	return event.EventID
}

// ServerName returns what follows the first colon of a user ID, so
// "@bob:host:8448" yields "host:8448".
func ServerName(userID string) string {
	if _, server, found := strings.Cut(userID, ":"); found {
		return server
	}
	return ""
}

// MessageContent is m.room.message content. Format and FormattedBody
// are set only for HTML messages.
type MessageContent struct {
	MsgType       string     `json:"msgtype"`
	Body          string     `json:"body"`
	Format        string     `json:"format,omitempty"`
	FormattedBody string     `json:"formatted_body,omitempty"`
	RelatesTo     *RelatesTo `json:"m.relates_to,omitempty"`
}

// RelatesTo is the m.relates_to object for the two relations the bot
// writes: m.thread (EventID is the root, InReplyTo the answered event)
// and m.annotation (Key is the reaction).
type RelatesTo struct {
	RelType       string     `json:"rel_type,omitempty"`
	EventID       string     `json:"event_id,omitempty"`
	Key           string     `json:"key,omitempty"`
	IsFallingBack bool       `json:"is_falling_back,omitempty"`
	InReplyTo     *InReplyTo `json:"m.in_reply_to,omitempty"`
}

type InReplyTo struct {
	EventID string `json:"event_id"`
}

type ReactionContent struct {
	RelatesTo RelatesTo `json:"m.relates_to"`
}

// NewTextMessage returns unthreaded plain text.
func NewTextMessage(body string) MessageContent {
	return MessageContent{MsgType: msgTypeText, Body: body}
}

// NewThreadReply answers eventID inside the thread rooted at root.
// Passing the root as eventID starts the thread. The reply fallback
// lets clients without thread support show it as an ordinary reply.
func NewThreadReply(root, eventID, body string) MessageContent {
	message := NewTextMessage(body)
	message.RelatesTo = &RelatesTo{
		RelType:       "m.thread",
		EventID:       root,
		IsFallingBack: true,
		InReplyTo:     &InReplyTo{EventID: eventID},
	}
	return message
}

// WithHTML adds an org.matrix.custom.html body. An empty html leaves
// the message plain.
func (content MessageContent) WithHTML(html string) MessageContent {
	if html != "" {
		content.Format, content.FormattedBody = "org.matrix.custom.html", html
	}
	return content
}
