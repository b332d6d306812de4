// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import "sync"

// Handler receives one captured chunk. The slice is only valid for the
// duration of the call.
type Handler func(chunk []byte)

// Source is anything that can deliver captured chunks. Subscribe
// registers handler and returns a function that removes it again.
// The returned function is idempotent.
type Source interface {
	Subscribe(handler Handler) (unsubscribe func())
}

// subscribers is the handler registry shared by Tee and the combined
// sources. Notification snapshots the list so handlers may unsubscribe
// from inside a callback.
type subscribers struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[uint64]Handler
	order    []uint64
}

func (s *subscribers) add(handler Handler) func() {
	s.mu.Lock()
	if s.handlers == nil {
		s.handlers = make(map[uint64]Handler)
	}
	id := s.nextID
	s.nextID++
	s.handlers[id] = handler
	s.order = append(s.order, id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *subscribers) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, id)
	for i, candidate := range s.order {
		if candidate == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *subscribers) notify(chunk []byte) {
	s.mu.RLock()
	if len(s.order) == 0 {
		s.mu.RUnlock()
		return
	}
	handlers := make([]Handler, 0, len(s.order))
	for _, id := range s.order {
		handlers = append(handlers, s.handlers[id])
	}
	s.mu.RUnlock()

	for _, handler := range handlers {
		handler(chunk)
	}
}

func (s *subscribers) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Multi fans several sources into one. Subscribing to the result
// subscribes the handler to every member; unsubscribing removes it from
// all of them.
func Multi(sources ...Source) Source {
	return multiSource(sources)
}

type multiSource []Source

func (m multiSource) Subscribe(handler Handler) func() {
	unsubscribers := make([]func(), 0, len(m))
	for _, source := range m {
		unsubscribers = append(unsubscribers, source.Subscribe(handler))
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			for _, unsubscribe := range unsubscribers {
				unsubscribe()
			}
		})
	}
}
