// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package keyqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("keyqueue: closed")

// Job is one unit of work. It receives the context given to Submit.
type Job func(ctx context.Context)

type entry struct {
	ctx context.Context
	job Job
}

// Queue serializes jobs per key. The zero value is not usable; call New.
type Queue[K comparable] struct {
	logger *slog.Logger

	mu      sync.Mutex
	pending map[K][]entry
	closed  bool
	workers sync.WaitGroup
}

// New returns an empty queue. A nil logger uses slog.Default().
func New[K comparable](logger *slog.Logger) *Queue[K] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue[K]{
		logger:  logger,
		pending: make(map[K][]entry),
	}
}

// Submit appends job to key's FIFO. If the FIFO was empty a worker
// starts immediately; otherwise the job waits behind the jobs already
// queued. Submit never blocks on job execution.
func (queue *Queue[K]) Submit(ctx context.Context, key K, job Job) error {
	queue.mu.Lock()
	defer queue.mu.Unlock()

	if queue.closed {
		return ErrClosed
	}
	fifo, active := queue.pending[key]
	queue.pending[key] = append(fifo, entry{ctx: ctx, job: job})
	if !active {
		queue.workers.Add(1)
		go queue.drain(key)
	}
	return nil
}

// Pending returns the number of jobs for key that have not finished,
// including the running one.
func (queue *Queue[K]) Pending(key K) int {
	queue.mu.Lock()
	defer queue.mu.Unlock()
	return len(queue.pending[key])
}

// Keys returns the number of keys with pending work.
func (queue *Queue[K]) Keys() int {
	queue.mu.Lock()
	defer queue.mu.Unlock()
	return len(queue.pending)
}

// Close rejects further submissions. Jobs already queued still run.
func (queue *Queue[K]) Close() {
	queue.mu.Lock()
	queue.closed = true
	queue.mu.Unlock()
}

// Wait blocks until every worker has drained its FIFO or ctx is done.
func (queue *Queue[K]) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		queue.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain runs key's jobs until the FIFO is empty. The running job stays
// at the head of the FIFO so that Submit sees the key as active.
func (queue *Queue[K]) drain(key K) {
	defer queue.workers.Done()
	for {
		queue.mu.Lock()
		head := queue.pending[key][0]
		queue.mu.Unlock()

		queue.run(key, head)

		queue.mu.Lock()
		fifo := queue.pending[key][1:]
		if len(fifo) == 0 {
			delete(queue.pending, key)
			queue.mu.Unlock()
			return
		}
		queue.pending[key] = fifo
		queue.mu.Unlock()
	}
}

func (queue *Queue[K]) run(key K, head entry) {
	defer func() {
		if recovered := recover(); recovered != nil {
			queue.logger.Error("queued job panicked",
				"key", fmt.Sprint(key),
				"panic", fmt.Sprint(recovered),
				"stack", string(debug.Stack()),
			)
		}
	}()
	head.job(head.ctx)
}
