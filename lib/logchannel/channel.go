// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logchannel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/bureau-foundation/workerlog/lib/fnapi"
)

// ErrConnect wraps every failure to establish the log stream.
var ErrConnect = errors.New("connecting to log collector")

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("log channel closed")

// closeGrace bounds how long Close waits for the collector to finish
// the stream after the client half-closes it.
const closeGrace = 2 * time.Second

// State is the lifecycle position of a Channel.
type State int32

const (
	StateUnconnected State = iota
	StateConnected
	StateStreaming
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnected:
		return "connected"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config describes the collector to connect to.
type Config struct {
	// Endpoint is a gRPC target, typically "host:port".
	Endpoint string

	// WorkerID is sent once as the "worker_id" stream metadata. It is
	// passed through verbatim, empty or not.
	WorkerID string

	// Compression names a registered compressor (see
	// fnapi.ValidCompression). Empty or "none" disables compression.
	Compression string

	// DialOptions are appended after the defaults, so they can
	// override the transport (tests use this for in-memory dialers).
	DialOptions []grpc.DialOption

	Logger *slog.Logger
}

// Channel is an open log stream. Send is safe to call from one
// goroutine at a time; State and Close may be called from anywhere.
type Channel struct {
	endpoint string
	workerID string
	logger   *slog.Logger

	conn   *grpc.ClientConn
	stream grpc.ClientStream
	abort  context.CancelFunc

	state atomic.Int32

	sendMu sync.Mutex

	// recvErr is written by the receiver before recvDone is closed.
	recvDone chan struct{}
	recvErr  error

	closeOnce sync.Once
}

// Dial connects to the collector and opens the logging stream. The
// stream is open when Dial returns. Cancelling ctx aborts
// establishment; after Dial returns, ctx no longer affects the stream.
// All failures wrap ErrConnect.
func Dial(ctx context.Context, config Config) (*Channel, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("%w: no endpoint", ErrConnect)
	}
	if !fnapi.ValidCompression(config.Compression) {
		return nil, fmt.Errorf("%w: unknown compression %q", ErrConnect, config.Compression)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("endpoint", config.Endpoint, "worker_id", config.WorkerID)

	callOptions := []grpc.CallOption{grpc.ForceCodec(fnapi.Codec{})}
	if config.Compression != "" && config.Compression != fnapi.CompressionNone {
		callOptions = append(callOptions, grpc.UseCompressor(config.Compression))
	}
	dialOptions := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithDefaultCallOptions(callOptions...),
	}
	dialOptions = append(dialOptions, config.DialOptions...)

	conn, err := grpc.NewClient(config.Endpoint, dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("%w: creating client for %s: %w", ErrConnect, config.Endpoint, err)
	}

	channel := &Channel{
		endpoint: config.Endpoint,
		workerID: config.WorkerID,
		logger:   logger,
		conn:     conn,
		recvDone: make(chan struct{}),
	}

	// The stream outlives ctx; ctx only bounds establishment.
	streamContext, abort := context.WithCancel(context.WithoutCancel(ctx))
	streamContext = metadata.AppendToOutgoingContext(streamContext, fnapi.WorkerIDMetadataKey, config.WorkerID)
	stopEstablishing := context.AfterFunc(ctx, abort)

	stream, err := conn.NewStream(streamContext, &fnapi.LoggingStreamDesc, fnapi.LoggingMethod)
	if !stopEstablishing() && err == nil {
		err = ctx.Err()
	}
	if err != nil {
		abort()
		conn.Close()
		return nil, fmt.Errorf("%w: opening log stream to %s: %w", ErrConnect, config.Endpoint, err)
	}

	channel.stream = stream
	channel.abort = abort
	channel.state.Store(int32(StateConnected))
	go channel.receive()

	logger.Info("log stream established", "compression", config.Compression)
	return channel, nil
}

// receive discards LogControl messages until the stream ends and then
// records how it ended.
func (c *Channel) receive() {
	defer close(c.recvDone)
	for {
		var control fnapi.LogControl
		if err := c.stream.RecvMsg(&control); err != nil {
			c.recvErr = err
			if !errors.Is(err, io.EOF) && c.State() != StateClosed {
				c.fail()
				c.logger.Warn("log stream terminated by collector", "error", err)
			}
			return
		}
	}
}

// Send writes batch as one LogEntry.List and returns when gRPC has
// accepted it for transmission. There is no timeout. Cancelling ctx
// aborts the write and with it the whole stream, since gRPC cannot
// abandon a single message. After any error the channel is Failed.
func (c *Channel) Send(ctx context.Context, batch []fnapi.LogEntry) error {
	switch c.State() {
	case StateClosed:
		return ErrClosed
	case StateFailed:
		return c.terminalError()
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	stopAbort := context.AfterFunc(ctx, c.abort)
	err := c.stream.SendMsg(&fnapi.LogEntryList{Entries: batch})
	stopAbort()

	if err == nil {
		c.state.CompareAndSwap(int32(StateConnected), int32(StateStreaming))
		return nil
	}

	if ctx.Err() != nil {
		c.fail()
		return fmt.Errorf("sending %d log entries: %w", len(batch), ctx.Err())
	}
	if errors.Is(err, io.EOF) {
		// The stream is already over; the receiver holds the reason.
		select {
		case <-c.recvDone:
			err = c.terminalError()
		case <-ctx.Done():
			err = ctx.Err()
		}
	}
	c.fail()
	return fmt.Errorf("sending %d log entries: %w", len(batch), err)
}

// terminalError describes why the stream ended, for a receiver that
// has already finished.
func (c *Channel) terminalError() error {
	select {
	case <-c.recvDone:
	default:
		return errors.New("log stream failed")
	}
	if c.recvErr == nil || errors.Is(c.recvErr, io.EOF) {
		return errors.New("collector ended the log stream")
	}
	return c.recvErr
}

func (c *Channel) fail() {
	for {
		current := c.state.Load()
		if State(current) == StateClosed || State(current) == StateFailed {
			return
		}
		if c.state.CompareAndSwap(current, int32(StateFailed)) {
			return
		}
	}
}

// State reports the channel's lifecycle position.
func (c *Channel) State() State {
	return State(c.state.Load())
}

// Done is closed once the stream has ended, whether the collector
// finished it, it failed, or Close tore it down.
func (c *Channel) Done() <-chan struct{} { return c.recvDone }

// Endpoint returns the collector target.
func (c *Channel) Endpoint() string { return c.endpoint }

// WorkerID returns the identity sent with the stream.
func (c *Channel) WorkerID() string { return c.workerID }

// Close half-closes the stream, gives the collector a short grace
// period to finish reading, then tears the connection down. A Failed
// channel stays Failed; otherwise the state becomes Closed. Safe to
// call more than once.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		failed := c.State() == StateFailed
		if !failed {
			c.state.Store(int32(StateClosed))
		}

		c.sendMu.Lock()
		if !failed {
			if closeErr := c.stream.CloseSend(); closeErr != nil {
				c.logger.Debug("half-closing log stream", "error", closeErr)
			}
		}
		c.sendMu.Unlock()

		graceContext, cancel := context.WithTimeout(context.Background(), closeGrace)
		select {
		case <-c.recvDone:
		case <-graceContext.Done():
			c.logger.Debug("collector did not end log stream within grace period")
		}
		cancel()

		c.abort()
		<-c.recvDone
		err = c.conn.Close()
	})
	return err
}
