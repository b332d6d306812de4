// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package collectortest runs an in-memory BeamFnLogging collector for
// tests. It listens on a bufconn pipe, records every LogEntry.List it
// receives along with the stream's worker_id metadata and negotiated
// compression, and can be told to fail streams on demand.
//
//	collector := collectortest.New(t)
//	channel, err := logchannel.Dial(ctx, logchannel.Config{
//		Endpoint:    collector.Endpoint(),
//		WorkerID:    "worker-1",
//		DialOptions: collector.DialOptions(),
//	})
package collectortest

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/stats"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/bureau-foundation/workerlog/lib/fnapi"
)

const bufferSize = 1 << 20

// Batch is one LogEntry.List as received, tagged with its stream's
// identity.
type Batch struct {
	WorkerID    string
	Compression string
	Entries     []fnapi.LogEntry
}

// StreamEnd reports how one logging stream finished from the
// collector's side.
type StreamEnd struct {
	WorkerID string

	// HalfClosed is true when the client closed its send side cleanly
	// (Recv returned io.EOF), false when the stream was cancelled or
	// failed.
	HalfClosed bool
}

// Collector is a running fake collector.
type Collector struct {
	listener *bufconn.Listener
	server   *grpc.Server

	batches chan Batch
	ended   chan StreamEnd

	mu          sync.Mutex
	received    []Batch
	failAfter   int // fail the stream after this many more batches; 0 means never
	failure     error
	compression map[string]string // worker id -> last seen grpc-encoding
}

// New starts a collector and stops it when the test ends.
func New(t testing.TB) *Collector {
	t.Helper()
	c := &Collector{
		listener:    bufconn.Listen(bufferSize),
		batches:     make(chan Batch, 1024),
		ended:       make(chan StreamEnd, 64),
		compression: make(map[string]string),
	}
	c.server = grpc.NewServer(
		grpc.ForceServerCodec(fnapi.Codec{}),
		grpc.StatsHandler(&encodingRecorder{collector: c}),
	)
	fnapi.RegisterLoggingServer(c.server, c)

	go c.server.Serve(c.listener)
	t.Cleanup(c.Stop)
	return c
}

// Endpoint is the target to pass to logchannel.Dial along with
// DialOptions.
func (c *Collector) Endpoint() string { return "passthrough:///collector" }

// DialOptions route the client connection through the in-memory pipe.
func (c *Collector) DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return c.listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
}

// Batches delivers every batch as it arrives.
func (c *Collector) Batches() <-chan Batch { return c.batches }

// Ended delivers one StreamEnd per finished stream.
func (c *Collector) Ended() <-chan StreamEnd { return c.ended }

// Received returns all batches so far, in arrival order.
func (c *Collector) Received() []Batch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Batch(nil), c.received...)
}

// Entries flattens Received into one ordered list.
func (c *Collector) Entries() []fnapi.LogEntry {
	var entries []fnapi.LogEntry
	for _, batch := range c.Received() {
		entries = append(entries, batch.Entries...)
	}
	return entries
}

// FailAfter makes the collector end the next stream with code after it
// has received count more batches. count 0 fails before reading any.
func (c *Collector) FailAfter(count int, code codes.Code, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failAfter = count + 1
	c.failure = status.Error(code, message)
}

// Stop shuts the server down, cancelling open streams.
func (c *Collector) Stop() {
	c.server.Stop()
}

// Logging implements fnapi.LoggingServer.
func (c *Collector) Logging(stream fnapi.LoggingStream) error {
	workerID := ""
	if md, ok := metadata.FromIncomingContext(stream.Context()); ok {
		if values := md.Get(fnapi.WorkerIDMetadataKey); len(values) > 0 {
			workerID = values[0]
		}
	}

	for {
		if err := c.checkFailure(); err != nil {
			c.streamEnded(StreamEnd{WorkerID: workerID})
			return err
		}

		list, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			c.streamEnded(StreamEnd{WorkerID: workerID, HalfClosed: true})
			return nil
		}
		if err != nil {
			c.streamEnded(StreamEnd{WorkerID: workerID})
			return err
		}

		c.mu.Lock()
		batch := Batch{
			WorkerID:    workerID,
			Compression: c.compression[workerID],
			Entries:     list.Entries,
		}
		c.received = append(c.received, batch)
		if c.failAfter > 1 {
			c.failAfter--
		}
		c.mu.Unlock()
		c.batches <- batch

		// Acknowledge with an empty control message, as a real
		// collector may; the client must tolerate it.
		if err := stream.Send(&fnapi.LogControl{}); err != nil {
			c.streamEnded(StreamEnd{WorkerID: workerID})
			return err
		}
	}
}

func (c *Collector) streamEnded(end StreamEnd) {
	select {
	case c.ended <- end:
	default:
	}
}

func (c *Collector) checkFailure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAfter == 1 {
		c.failAfter = 0
		return c.failure
	}
	return nil
}

// encodingRecorder notes the compression each stream's client
// negotiated, keyed by worker id.
type encodingRecorder struct {
	collector *Collector
}

func (r *encodingRecorder) TagRPC(ctx context.Context, _ *stats.RPCTagInfo) context.Context {
	return ctx
}

func (r *encodingRecorder) HandleRPC(ctx context.Context, s stats.RPCStats) {
	header, ok := s.(*stats.InHeader)
	if !ok {
		return
	}
	workerID := ""
	if values := header.Header.Get(fnapi.WorkerIDMetadataKey); len(values) > 0 {
		workerID = values[0]
	}
	r.collector.mu.Lock()
	r.collector.compression[workerID] = header.Compression
	r.collector.mu.Unlock()
}

func (r *encodingRecorder) TagConn(ctx context.Context, _ *stats.ConnTagInfo) context.Context {
	return ctx
}

func (r *encodingRecorder) HandleConn(context.Context, stats.ConnStats) {}
