// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/roomgpt/lib/secret"
	"github.com/bureau-foundation/roomgpt/messaging"
)

// SessionFileName is the file "roomgpt login" writes into the state
// directory.
const SessionFileName = "session.json"

// SessionData is the content of session.json.
type SessionData struct {
	HomeserverURL string `json:"homeserver_url"`
	UserID        string `json:"user_id"`
	AccessToken   string `json:"access_token"`
	DeviceID      string `json:"device_id,omitempty"`
}

func (data SessionData) check() error {
	switch {
	case data.AccessToken == "":
		return errors.New("empty access token")
	case data.UserID == "":
		return errors.New("empty user_id")
	}
	return nil
}

// LoadSession restores the session saved in stateDir. The file's bytes
// are wiped once decoded; the token itself ends up in guarded memory
// owned by the returned session, which the caller must Close.
func LoadSession(stateDir string, logger *slog.Logger) (*messaging.Client, *messaging.DirectSession, error) {
	path := filepath.Join(stateDir, SessionFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w (run roomgpt login first)", path, err)
	}
	var data SessionData
	err = json.Unmarshal(raw, &data)
	secret.Zero(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing session %s: %w", path, err)
	}
	if err := data.check(); err != nil {
		return nil, nil, fmt.Errorf("session %s: %w", path, err)
	}

	client, err := messaging.NewClient(messaging.ClientConfig{HomeserverURL: data.HomeserverURL, Logger: logger})
	if err != nil {
		return nil, nil, fmt.Errorf("creating matrix client from %s: %w", path, err)
	}
	session, err := client.SessionFromToken(data.UserID, data.AccessToken)
	if err != nil {
		return nil, nil, err
	}
	return client, session, nil
}

// SaveSession writes session into stateDir, creating the directory
// with owner-only access. The file is replaced atomically so a crash
// never leaves a truncated session behind.
func SaveSession(stateDir string, session *messaging.DirectSession) error {
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	encoded, err := json.MarshalIndent(SessionData{
		HomeserverURL: session.HomeserverURL(),
		UserID:        session.UserID(),
		AccessToken:   session.AccessToken(),
		DeviceID:      session.DeviceID(),
	}, "", "\t")
	if err != nil {
		return err
	}
	defer secret.Zero(encoded)

	temporary, err := os.CreateTemp(stateDir, SessionFileName+".*")
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	defer os.Remove(temporary.Name())
	_, writeErr := temporary.Write(encoded)
	if err := errors.Join(writeErr, temporary.Close()); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	if err := os.Rename(temporary.Name(), filepath.Join(stateDir, SessionFileName)); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// ValidateSession asks the homeserver who owns the token and fails
// unless it is the session's user.
func ValidateSession(ctx context.Context, session messaging.Session) (string, error) {
	owner, err := session.WhoAmI(ctx)
	if err != nil {
		return "", fmt.Errorf("validating matrix session: %w", err)
	}
	if owner != session.UserID() {
		return "", fmt.Errorf("validating matrix session: token belongs to %s, not %s", owner, session.UserID())
	}
	return owner, nil
}
