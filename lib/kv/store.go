// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("kv: not found")

// UpdateFunc computes the next value of a key from its current value.
// found is false when the key does not exist. Returning a nil slice
// deletes the key; returning an error aborts the update and leaves the
// key untouched. Drivers with optimistic transactions may call it more
// than once, so it must not have side effects.
type UpdateFunc func(current []byte, found bool) (next []byte, err error)

// Store is a key-value store. Implementations are safe for concurrent
// use.
type Store interface {
	// Get returns the value of key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the value of key.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key succeeds.
	Delete(ctx context.Context, key string) error

	// Update applies fn atomically with respect to other Updates,
	// Puts and Deletes of the same key.
	Update(ctx context.Context, key string, fn UpdateFunc) error

	Close() error
}
