// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kv

import (
	"context"
	"slices"
	"sync"
)

// Memory is an in-process Store. Values are copied in and out.
type Memory struct {
	mu     sync.Mutex
	values map[string][]byte
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

func (store *Memory) Get(_ context.Context, key string) ([]byte, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	value, ok := store.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(value), nil
}

func (store *Memory) Put(_ context.Context, key string, value []byte) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.values[key] = slices.Clone(value)
	return nil
}

func (store *Memory) Delete(_ context.Context, key string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.values, key)
	return nil
}

func (store *Memory) Update(_ context.Context, key string, fn UpdateFunc) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	current, found := store.values[key]
	next, err := fn(slices.Clone(current), found)
	if err != nil {
		return err
	}
	if next == nil {
		delete(store.values, key)
		return nil
	}
	store.values[key] = slices.Clone(next)
	return nil
}

func (store *Memory) Close() error { return nil }
