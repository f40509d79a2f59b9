// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer is secret data in locked, non-dumpable memory. It must not be
// copied. Reads after Close panic.
type Buffer struct {
	mu     sync.Mutex
	region []byte
	closed bool
}

// New maps a zero-filled buffer of size bytes.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: buffer size must be positive, got %d", size)
	}

	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap: %w", err)
	}
	if err := unix.Mlock(region); err != nil {
		unix.Munmap(region)
		return nil, fmt.Errorf("secret: mlock: %w", err)
	}
	if err := unix.Madvise(region, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(region)
		unix.Munmap(region)
		return nil, fmt.Errorf("secret: madvise(MADV_DONTDUMP): %w", err)
	}
	return &Buffer{region: region}, nil
}

// NewFromBytes copies source into a new buffer and zeros source.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, errors.New("secret: empty value")
	}
	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}
	copy(buffer.region, source)
	Zero(source)
	return buffer, nil
}

// Bytes returns the protected region itself. The slice is invalid
// after Close.
func (buffer *Buffer) Bytes() []byte {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()
	if buffer.closed {
		panic("secret: read from closed buffer")
	}
	return buffer.region
}

// String returns a heap copy, for APIs that only take strings (HTTP
// header values).
func (buffer *Buffer) String() string {
	return string(buffer.Bytes())
}

// Len reports the secret's length, or 0 after Close.
func (buffer *Buffer) Len() int {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()
	return len(buffer.region)
}

// Close zeros, unlocks and unmaps the region. Calling it again is a
// no-op.
func (buffer *Buffer) Close() error {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()
	if buffer.closed {
		return nil
	}
	buffer.closed = true

	Zero(buffer.region)
	var errs []error
	if err := unix.Munlock(buffer.region); err != nil {
		errs = append(errs, fmt.Errorf("secret: munlock: %w", err))
	}
	if err := unix.Munmap(buffer.region); err != nil {
		errs = append(errs, fmt.Errorf("secret: munmap: %w", err))
	}
	buffer.region = nil
	return errors.Join(errs...)
}

// Zero overwrites data with zeros.
func Zero(data []byte) {
	clear(data)
}
