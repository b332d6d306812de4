// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package recordqueue holds log entries between capture and shipping.
//
// A [Queue] is owned by one bridge. Any number of producers append
// with Enqueue; one consumer removes batches with DrainUpTo. The queue
// has no capacity bound and never blocks or pushes back on producers:
// if entries arrive faster than they are shipped, it grows.
package recordqueue

import (
	"sync"

	"github.com/bureau-foundation/workerlog/lib/fnapi"
)

// Queue is an unbounded FIFO of log entries. Order is the order in
// which Enqueue calls acquired the lock. Safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	entries []fnapi.LogEntry
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue appends entry at the tail.
func (q *Queue) Enqueue(entry fnapi.LogEntry) {
	q.mu.Lock()
	q.entries = append(q.entries, entry)
	q.mu.Unlock()
}

// DrainUpTo removes and returns the oldest min(n, Len()) entries in
// order. It returns nil when the queue is empty or n <= 0. The
// returned slice is owned by the caller.
func (q *Queue) DrainUpTo(n int) []fnapi.LogEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := min(n, len(q.entries))
	if count <= 0 {
		return nil
	}

	batch := make([]fnapi.LogEntry, count)
	copy(batch, q.entries[:count])
	clear(q.entries[:count]) // release messages for GC
	q.entries = q.entries[count:]
	if len(q.entries) == 0 {
		// Drop the backing array so a burst does not pin memory.
		q.entries = nil
	}
	return batch
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
