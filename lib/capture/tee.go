// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"io"
	"sync"
)

// Tee forwards writes to a destination and reports each write to its
// subscribers. One Write is one chunk: nothing is split on newlines or
// coalesced. Safe for concurrent use; concurrent writes are serialized
// so subscribers see chunks in the order they reached the destination.
type Tee struct {
	name        string
	mu          sync.Mutex
	destination io.Writer
	subscribers subscribers
}

// NewTee returns a Tee writing to destination. name identifies the
// stream in diagnostics ("stdout", "stderr").
func NewTee(name string, destination io.Writer) *Tee {
	return &Tee{name: name, destination: destination}
}

// Name returns the stream name given to NewTee.
func (t *Tee) Name() string { return t.name }

// Write forwards p unmodified to the destination and then hands it to
// every subscriber. Subscribers are notified even when the destination
// write fails; the destination's result is what Write returns.
func (t *Tee) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	written, err := t.destination.Write(p)
	if len(p) > 0 {
		t.subscribers.notify(p)
	}
	return written, err
}

// Subscribe implements Source.
func (t *Tee) Subscribe(handler Handler) func() {
	return t.subscribers.add(handler)
}

// Subscribers returns the number of registered handlers.
func (t *Tee) Subscribers() int {
	return t.subscribers.count()
}
