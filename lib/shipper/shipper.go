// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package shipper moves log entries from a record queue to a remote
// collector in bounded batches.
//
// [Run] is a single consumer loop: drain up to [MaxBatchSize] entries,
// send them and wait for the send to complete, repeat; when the queue
// is empty, sleep [PollInterval] on the injected clock. There is at
// most one batch in flight. A send failure is terminal: it is not
// retried, the loop stops, and whatever is still queued is abandoned.
// Cancelling the context is the graceful way out: a batch already in
// flight gets a bounded grace period to finish, then Run makes one
// bounded best-effort pass over what is queued and returns nil. A
// collector failure during that grace period is still a send failure.
// Both bounds are measured on the injected clock.
package shipper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/workerlog/lib/clock"
	"github.com/bureau-foundation/workerlog/lib/fnapi"
	"github.com/bureau-foundation/workerlog/lib/recordqueue"
)

const (
	// MaxBatchSize is the most entries carried by one LogEntryList.
	MaxBatchSize = 100

	// PollInterval is how long the loop idles when the queue is empty.
	PollInterval = 100 * time.Millisecond

	// drainTimeout bounds the shutdown pass.
	drainTimeout = 5 * time.Second
)

// ErrSend wraps the cause when a batch could not be written to the
// collector. Check with errors.Is.
var ErrSend = errors.New("sending log batch")

// Sender writes one batch to the collector and returns once the write
// is locally complete. logchannel.Channel is the production Sender.
type Sender interface {
	Send(ctx context.Context, batch []fnapi.LogEntry) error
}

// Stats is a snapshot of what a shipper has delivered.
type Stats struct {
	Batches uint64
	Records uint64
}

// Counters accumulates Stats. It is updated by the shipping goroutine
// and may be read concurrently.
type Counters struct {
	batches atomic.Uint64
	records atomic.Uint64
}

func (c *Counters) add(records int) {
	c.batches.Add(1)
	c.records.Add(uint64(records))
}

// Stats returns the current totals.
func (c *Counters) Stats() Stats {
	return Stats{Batches: c.batches.Load(), Records: c.records.Load()}
}

// Config wires Run to its collaborators. Queue and Sender are
// required. Clock defaults to the real clock, Logger to slog.Default,
// Counters to a private instance.
type Config struct {
	Queue    *recordqueue.Queue
	Sender   Sender
	Clock    clock.Clock
	Logger   *slog.Logger
	Counters *Counters
}

// Run ships batches until ctx is cancelled (returns nil) or a send
// fails (returns an error wrapping ErrSend and the cause).
func Run(ctx context.Context, config Config) error {
	if config.Queue == nil || config.Sender == nil {
		return errors.New("shipper: Queue and Sender are required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Counters == nil {
		config.Counters = &Counters{}
	}

	for {
		if ctx.Err() != nil {
			drain(ctx, config)
			return nil
		}

		batch := config.Queue.DrainUpTo(MaxBatchSize)
		if len(batch) == 0 {
			select {
			case <-config.Clock.After(PollInterval):
			case <-ctx.Done():
				drain(ctx, config)
				return nil
			}
			continue
		}

		abandoned, err := sendBatch(ctx, config, batch)
		if abandoned {
			// The send outlived the shutdown grace period. Its batch
			// is lost; try the rest.
			config.Logger.Warn("log batch abandoned at shutdown",
				"records", len(batch),
				"error", err,
			)
			drain(ctx, config)
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSend, err)
		}
		config.Counters.add(len(batch))
	}
}

// sendBatch sends with a context that survives cancellation of ctx
// for up to drainTimeout, so shutdown does not tear down a stream in
// the middle of a write that was about to complete. abandoned reports
// that the send failed because that grace period ran out; any other
// failure is the collector's and is returned as-is.
func sendBatch(ctx context.Context, config Config, batch []fnapi.LogEntry) (abandoned bool, err error) {
	sendContext, cancelSend := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelSend()
	var expired atomic.Bool
	stop := context.AfterFunc(ctx, func() {
		select {
		case <-config.Clock.After(drainTimeout):
			expired.Store(true)
			cancelSend()
		case <-sendContext.Done():
		}
	})
	defer stop()
	err = config.Sender.Send(sendContext, batch)
	return err != nil && expired.Load(), err
}

// drain makes one pass over the entries queued at the moment shutdown
// began. Entries enqueued during the pass are left behind so a process
// still writing cannot hold shutdown open. The first failure abandons
// the remainder.
func drain(ctx context.Context, config Config) {
	drainContext, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	deadline := config.Clock.After(drainTimeout)
	go func() {
		select {
		case <-deadline:
			cancel()
		case <-drainContext.Done():
		}
	}()

	remaining := config.Queue.Len()
	for remaining > 0 {
		batch := config.Queue.DrainUpTo(min(remaining, MaxBatchSize))
		if len(batch) == 0 {
			return
		}
		remaining -= len(batch)

		if err := config.Sender.Send(drainContext, batch); err != nil {
			config.Logger.Warn("drain: log batch failed, abandoning remaining records",
				"error", err,
				"abandoned", len(batch)+remaining,
			)
			return
		}
		config.Counters.add(len(batch))
	}
}
