// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/bureau-foundation/roomgpt/lib/kv"
)

const registryKey = "channels"

// Registry maps the rooms that opted in to their system prompts. An
// empty prompt means the room uses the default.
type Registry struct {
	store  kv.Store
	codec  kv.Codec
	logger *slog.Logger
}

// NewRegistry returns a registry over store.
func NewRegistry(store kv.Store, codec kv.Codec, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: store, codec: codec, logger: logger}
}

// Snapshot returns the current room to prompt mapping. A read failure
// is logged and yields an empty mapping.
func (registry *Registry) Snapshot(ctx context.Context) map[string]string {
	data, err := registry.store.Get(ctx, registryKey)
	if errors.Is(err, kv.ErrNotFound) {
		return map[string]string{}
	}
	if err != nil {
		registry.logger.Error("reading channel registry failed", "error", err)
		return map[string]string{}
	}
	rooms, err := registry.decode(data)
	if err != nil {
		registry.logger.Error("reading channel registry failed", "error", err)
		return map[string]string{}
	}
	return rooms
}

// Contains reports whether roomID is registered.
func (registry *Registry) Contains(ctx context.Context, roomID string) bool {
	_, ok := registry.Snapshot(ctx)[roomID]
	return ok
}

// Prompt returns the stored prompt for roomID.
func (registry *Registry) Prompt(ctx context.Context, roomID string) (string, bool) {
	prompt, ok := registry.Snapshot(ctx)[roomID]
	return prompt, ok
}

// Upsert registers roomID with prompt, replacing any earlier prompt.
func (registry *Registry) Upsert(ctx context.Context, roomID, prompt string) error {
	return registry.modify(ctx, func(rooms map[string]string) bool {
		if current, ok := rooms[roomID]; ok && current == prompt {
			return false
		}
		rooms[roomID] = prompt
		return true
	})
}

// Remove unregisters roomID. Removing an absent room is not an error.
func (registry *Registry) Remove(ctx context.Context, roomID string) error {
	return registry.modify(ctx, func(rooms map[string]string) bool {
		if _, ok := rooms[roomID]; !ok {
			return false
		}
		delete(rooms, roomID)
		return true
	})
}

var errUnchanged = errors.New("unchanged")

func (registry *Registry) modify(ctx context.Context, change func(map[string]string) bool) error {
	err := registry.store.Update(ctx, registryKey, func(current []byte, found bool) ([]byte, error) {
		rooms := map[string]string{}
		if found {
			decoded, err := registry.decode(current)
			if err != nil {
				return nil, err
			}
			rooms = decoded
		}
		if !change(rooms) {
			return nil, errUnchanged
		}
		data, err := registry.codec.Marshal(rooms)
		if err != nil {
			return nil, fmt.Errorf("state: encoding channel registry: %w", err)
		}
		return data, nil
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}
	if err != nil {
		registry.logger.Error("updating channel registry failed", "error", err)
		return err
	}
	return nil
}

func (registry *Registry) decode(data []byte) (map[string]string, error) {
	var rooms map[string]string
	if err := registry.codec.Unmarshal(data, &rooms); err != nil {
		return nil, fmt.Errorf("state: decoding channel registry: %w", err)
	}
	if rooms == nil {
		rooms = map[string]string{}
	}
	return maps.Clone(rooms), nil
}
