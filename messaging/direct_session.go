// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/roomgpt/lib/secret"
)

// DirectSession is a [Session] backed by an access token against a real
// homeserver. The token lives in a secret.Buffer; Close releases it.
type DirectSession struct {
	client   *Client
	token    *secret.Buffer
	userID   string
	deviceID string

	// Transaction IDs are txnPrefix plus a sequence number. The prefix
	// carries the session's start time so a restart never reuses one.
	txnPrefix string
	txnSeq    atomic.Uint64
}

func (c *Client) newSession(userID, deviceID, accessToken string) (*DirectSession, error) {
	token, err := secret.NewFromBytes([]byte(accessToken))
	if err != nil {
		return nil, fmt.Errorf("messaging: protecting access token: %w", err)
	}
	return &DirectSession{
		client:    c,
		token:     token,
		userID:    userID,
		deviceID:  deviceID,
		txnPrefix: "roomgpt-" + strconv.FormatInt(time.Now().UnixMilli(), 36) + "-",
	}, nil
}

func (s *DirectSession) UserID() string   { return s.userID }
func (s *DirectSession) DeviceID() string { return s.deviceID }

// AccessToken copies the token onto the heap. Only the session file
// writer needs it.
func (s *DirectSession) AccessToken() string { return s.token.String() }

// HomeserverURL returns the base URL of the session's homeserver.
func (s *DirectSession) HomeserverURL() string { return s.client.HomeserverURL() }

// CloseIdleConnections forwards to the underlying Client.
func (s *DirectSession) CloseIdleConnections() { s.client.CloseIdleConnections() }

// Close wipes the access token. Calling it twice is harmless.
func (s *DirectSession) Close() error {
	if s.token == nil {
		return nil
	}
	return s.token.Close()
}

// do performs an authenticated call and decodes the response into out.
func (s *DirectSession) do(ctx context.Context, method, path string, body, out any) error {
	return s.client.invoke(ctx, call{method: method, path: path, token: s.token, body: body}, out)
}

// WhoAmI returns the user the access token belongs to.
func (s *DirectSession) WhoAmI(ctx context.Context) (string, error) {
	var response WhoAmIResponse
	if err := s.do(ctx, http.MethodGet, endpoint("account", "whoami"), nil, &response); err != nil {
		return "", fmt.Errorf("messaging: whoami: %w", err)
	}
	return response.UserID, nil
}

// JoinRoom joins roomID and returns the room ID the homeserver reports.
func (s *DirectSession) JoinRoom(ctx context.Context, roomID string) (string, error) {
	var response struct {
		RoomID string `json:"room_id"`
	}
	if err := s.do(ctx, http.MethodPost, endpoint("join", roomID), struct{}{}, &response); err != nil {
		return "", fmt.Errorf("messaging: joining %s: %w", roomID, err)
	}
	return response.RoomID, nil
}

// LeaveRoom leaves roomID. Leaving a room the session was only invited
// to rejects the invite.
func (s *DirectSession) LeaveRoom(ctx context.Context, roomID string) error {
	if err := s.do(ctx, http.MethodPost, endpoint("rooms", roomID, "leave"), struct{}{}, nil); err != nil {
		return fmt.Errorf("messaging: leaving %s: %w", roomID, err)
	}
	return nil
}

func (s *DirectSession) JoinedRooms(ctx context.Context) ([]string, error) {
	var response JoinedRoomsResponse
	if err := s.do(ctx, http.MethodGet, endpoint("joined_rooms"), nil, &response); err != nil {
		return nil, fmt.Errorf("messaging: listing joined rooms: %w", err)
	}
	return response.JoinedRooms, nil
}

// SendMessage posts an m.room.message and returns its event ID.
func (s *DirectSession) SendMessage(ctx context.Context, roomID string, content MessageContent) (string, error) {
	return s.SendEvent(ctx, roomID, EventTypeMessage, content)
}

// React annotates eventID with key.
func (s *DirectSession) React(ctx context.Context, roomID, eventID, key string) (string, error) {
	annotation := ReactionContent{RelatesTo: RelatesTo{RelType: "m.annotation", EventID: eventID, Key: key}}
	return s.SendEvent(ctx, roomID, EventTypeReaction, annotation)
}

// SendEvent puts an event of eventType under a fresh transaction ID, so
// a retried request is deduplicated by the homeserver.
func (s *DirectSession) SendEvent(ctx context.Context, roomID, eventType string, content any) (string, error) {
	txnID := s.txnPrefix + strconv.FormatUint(s.txnSeq.Add(1), 10)
	var response SendEventResponse
	if err := s.do(ctx, http.MethodPut, endpoint("rooms", roomID, "send", eventType, txnID), content, &response); err != nil {
		return "", fmt.Errorf("messaging: sending %s to %s: %w", eventType, roomID, err)
	}
	return response.EventID, nil
}

// SetTyping turns the typing notification on or off. The homeserver
// expires an unrenewed notification after timeout.
func (s *DirectSession) SetTyping(ctx context.Context, roomID string, typing bool, timeout time.Duration) error {
	notice := TypingRequest{Typing: typing}
	if typing {
		notice.Timeout = timeout.Milliseconds()
	}
	if err := s.do(ctx, http.MethodPut, endpoint("rooms", roomID, "typing", s.userID), notice, nil); err != nil {
		return fmt.Errorf("messaging: typing in %s: %w", roomID, err)
	}
	return nil
}

// GetStateEvent returns the raw content of one state event. A missing
// event is a *MatrixError with code M_NOT_FOUND.
func (s *DirectSession) GetStateEvent(ctx context.Context, roomID, eventType, stateKey string) (json.RawMessage, error) {
	var content json.RawMessage
	if err := s.do(ctx, http.MethodGet, endpoint("rooms", roomID, "state", eventType, stateKey), nil, &content); err != nil {
		return nil, fmt.Errorf("messaging: reading %s state in %s: %w", eventType, roomID, err)
	}
	return content, nil
}

// PowerLevels reads and decodes m.room.power_levels.
func (s *DirectSession) PowerLevels(ctx context.Context, roomID string) (*PowerLevels, error) {
	content, err := s.GetStateEvent(ctx, roomID, EventTypePowerLevels, "")
	if err != nil {
		return nil, err
	}
	levels := new(PowerLevels)
	if err := json.Unmarshal(content, levels); err != nil {
		return nil, fmt.Errorf("messaging: power levels of %s: %w", roomID, err)
	}
	return levels, nil
}

// Sync polls /sync. An empty options.Since requests the initial sync.
func (s *DirectSession) Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error) {
	query := make(url.Values, 3)
	if options.Since != "" {
		query.Set("since", options.Since)
	}
	if options.SetTimeout {
		query.Set("timeout", strconv.Itoa(options.Timeout))
	}
	if options.Filter != "" {
		query.Set("filter", options.Filter)
	}

	response := new(SyncResponse)
	request := call{method: http.MethodGet, path: endpoint("sync"), query: query, token: s.token}
	if err := s.client.invoke(ctx, request, response); err != nil {
		return nil, fmt.Errorf("messaging: sync: %w", err)
	}
	return response, nil
}
