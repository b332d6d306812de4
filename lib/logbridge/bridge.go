// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logbridge is the "start shipping" entry point. [Start] wires
// a capture source to a collector: each captured chunk is converted to
// a log entry and queued, and a background shipper streams the queue
// to the collector over one logchannel stream.
//
// The bridge owns everything it creates. When the shipping task ends,
// for whatever reason, it unsubscribes from the source and closes the
// channel. Captured output keeps reaching the console either way; the
// source's pass-through does not depend on the bridge.
package logbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"

	"github.com/bureau-foundation/workerlog/lib/capture"
	"github.com/bureau-foundation/workerlog/lib/clock"
	"github.com/bureau-foundation/workerlog/lib/logchannel"
	"github.com/bureau-foundation/workerlog/lib/logrecord"
	"github.com/bureau-foundation/workerlog/lib/recordqueue"
	"github.com/bureau-foundation/workerlog/lib/shipper"
)

// Config describes one bridge.
type Config struct {
	// WorkerID tags the stream. Passed through verbatim.
	WorkerID string

	// Endpoint is the collector's gRPC target.
	Endpoint string

	// Source supplies captured chunks. Required.
	Source capture.Source

	// Compression names the stream compressor; empty for none.
	Compression string

	// Clock drives timestamps and the shipper's poll interval.
	// Defaults to the real clock.
	Clock clock.Clock

	Logger *slog.Logger

	// DialOptions are passed to logchannel.Dial.
	DialOptions []grpc.DialOption
}

// Stats describes a running or finished task.
type Stats struct {
	shipper.Stats

	// Queued is the number of entries waiting to be shipped.
	Queued int

	// Channel is the stream's lifecycle state.
	Channel logchannel.State
}

// Task is a running bridge.
type Task struct {
	cancel   context.CancelFunc
	done     chan struct{}
	err      error
	queue    *recordqueue.Queue
	channel  *logchannel.Channel
	counters *shipper.Counters
}

// Start connects to the collector and begins shipping. The stream is
// established before Start returns; a connection failure is returned
// here, wrapping logchannel.ErrConnect, and nothing is subscribed.
// Cancelling ctx is equivalent to calling Stop.
func Start(ctx context.Context, config Config) (*Task, error) {
	if config.Source == nil {
		return nil, errors.New("logbridge: Source is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	channel, err := logchannel.Dial(ctx, logchannel.Config{
		Endpoint:    config.Endpoint,
		WorkerID:    config.WorkerID,
		Compression: config.Compression,
		DialOptions: config.DialOptions,
		Logger:      config.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("starting log bridge: %w", err)
	}

	queue := recordqueue.New()
	converter := logrecord.NewConverter(config.Clock)
	unsubscribe := config.Source.Subscribe(func(chunk []byte) {
		queue.Enqueue(converter.Convert(string(chunk)))
	})

	taskContext, cancel := context.WithCancel(ctx)
	task := &Task{
		cancel:   cancel,
		done:     make(chan struct{}),
		queue:    queue,
		channel:  channel,
		counters: &shipper.Counters{},
	}

	go func() {
		defer close(task.done)
		task.err = shipper.Run(taskContext, shipper.Config{
			Queue:    queue,
			Sender:   channel,
			Clock:    config.Clock,
			Logger:   config.Logger,
			Counters: task.counters,
		})
		unsubscribe()
		if err := channel.Close(); err != nil {
			config.Logger.Debug("closing log channel", "error", err)
		}
		cancel()
	}()

	return task, nil
}

// Done is closed when the task has ended and released its resources.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task ends. It returns nil after Stop or
// context cancellation, and an error wrapping shipper.ErrSend if the
// collector connection failed.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Stop cancels the task and waits for it. Entries already queued get
// one best-effort shipping pass first.
func (t *Task) Stop() error {
	t.cancel()
	return t.Wait()
}

// Stats reports progress.
func (t *Task) Stats() Stats {
	return Stats{
		Stats:   t.counters.Stats(),
		Queued:  t.queue.Len(),
		Channel: t.channel.State(),
	}
}
