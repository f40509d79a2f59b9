// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// fileStripes is the number of lock stripes keys hash into.
const fileStripes = 64

// File stores each key as one file under a root directory. The key
// "users/@alice:example.org" with extension ".json" lives at
// <root>/users/@alice:example.org.json. Each '/'-separated segment is
// path-escaped.
//
// Writes go to a temporary file in the same directory and are renamed
// into place, so a reader in another process never sees a partial
// document. Locking is per process only.
type File struct {
	root      string
	extension string
	stripes   [fileStripes]sync.Mutex
}

// NewFile creates root if needed. extension is appended to every file
// name, for example ".json".
func NewFile(root, extension string) (*File, error) {
	if root == "" {
		return nil, errors.New("kv/file: root directory is required")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("kv/file: creating %s: %w", root, err)
	}
	return &File{root: root, extension: extension}, nil
}

func (store *File) path(key string) (string, error) {
	if key == "" {
		return "", errors.New("kv/file: empty key")
	}
	segments := strings.Split(key, "/")
	for index, segment := range segments {
		if segment == "" || segment == "." || segment == ".." {
			return "", fmt.Errorf("kv/file: invalid key %q", key)
		}
		segments[index] = url.PathEscape(segment)
	}
	return filepath.Join(store.root, filepath.Join(segments...)+store.extension), nil
}

func (store *File) lock(key string) *sync.Mutex {
	return &store.stripes[xxhash.Sum64String(key)%fileStripes]
}

func (store *File) Get(_ context.Context, key string) ([]byte, error) {
	path, err := store.path(key)
	if err != nil {
		return nil, err
	}
	return store.read(path)
}

func (store *File) read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv/file: %w", err)
	}
	return data, nil
}

func (store *File) Put(_ context.Context, key string, value []byte) error {
	path, err := store.path(key)
	if err != nil {
		return err
	}
	mu := store.lock(key)
	mu.Lock()
	defer mu.Unlock()
	return store.write(path, value)
}

func (store *File) Delete(_ context.Context, key string) error {
	path, err := store.path(key)
	if err != nil {
		return err
	}
	mu := store.lock(key)
	mu.Lock()
	defer mu.Unlock()
	return store.remove(path)
}

func (store *File) Update(_ context.Context, key string, fn UpdateFunc) error {
	path, err := store.path(key)
	if err != nil {
		return err
	}
	mu := store.lock(key)
	mu.Lock()
	defer mu.Unlock()

	current, err := store.read(path)
	found := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	next, err := fn(current, found)
	if err != nil {
		return err
	}
	if next == nil {
		return store.remove(path)
	}
	return store.write(path, next)
}

func (store *File) Close() error { return nil }

func (store *File) remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("kv/file: %w", err)
	}
	return nil
}

func (store *File) write(path string, value []byte) error {
	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0o700); err != nil {
		return fmt.Errorf("kv/file: %w", err)
	}
	temporary, err := os.CreateTemp(directory, ".tmp-*")
	if err != nil {
		return fmt.Errorf("kv/file: %w", err)
	}
	cleanup := func() { os.Remove(temporary.Name()) }

	if _, err := temporary.Write(value); err != nil {
		temporary.Close()
		cleanup()
		return fmt.Errorf("kv/file: writing %s: %w", path, err)
	}
	if err := temporary.Sync(); err != nil {
		temporary.Close()
		cleanup()
		return fmt.Errorf("kv/file: syncing %s: %w", path, err)
	}
	if err := temporary.Close(); err != nil {
		cleanup()
		return fmt.Errorf("kv/file: %w", err)
	}
	if err := os.Rename(temporary.Name(), path); err != nil {
		cleanup()
		return fmt.Errorf("kv/file: %w", err)
	}
	return nil
}
