// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logbridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/bureau-foundation/workerlog/lib/capture"
	"github.com/bureau-foundation/workerlog/lib/clock"
	"github.com/bureau-foundation/workerlog/lib/fnapi"
	"github.com/bureau-foundation/workerlog/lib/logchannel"
	"github.com/bureau-foundation/workerlog/lib/logchannel/collectortest"
	"github.com/bureau-foundation/workerlog/lib/logrecord"
	"github.com/bureau-foundation/workerlog/lib/shipper"
	"github.com/bureau-foundation/workerlog/lib/testutil"
)

const testTimeout = 5 * time.Second

// syncBuffer is a console stand-in that tolerates concurrent writers.
type syncBuffer struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}

type fixture struct {
	collector *collectortest.Collector
	console   *syncBuffer
	tee       *capture.Tee
	clock     *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	console := &syncBuffer{}
	f := &fixture{
		collector: collectortest.New(t),
		console:   console,
		tee:       capture.NewTee("stdout", console),
		clock:     clock.Fake(time.Date(2026, 3, 14, 15, 9, 26, 535_897_932, time.UTC)),
	}
	// Unblock any WaitForTimers left waiting after the task is gone.
	t.Cleanup(func() { f.clock.After(time.Hour) })
	return f
}

func (f *fixture) start(t *testing.T, workerID string) *Task {
	t.Helper()
	task, err := Start(context.Background(), Config{
		WorkerID:    workerID,
		Endpoint:    f.collector.Endpoint(),
		Source:      f.tee,
		Clock:       f.clock,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		DialOptions: f.collector.DialOptions(),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { task.Stop() })
	return task
}

// poll lets the idle shipper run one more iteration.
func (f *fixture) poll() {
	f.clock.WaitForTimers(1)
	f.clock.Advance(shipper.PollInterval)
}

func TestCapturedOutputReachesCollector(t *testing.T) {
	f := newFixture(t)
	task := f.start(t, "worker-e2e")

	f.clock.WaitForTimers(1)
	fmt.Fprint(f.tee, "hello\n")
	fmt.Fprint(f.tee, "partial")
	f.clock.Advance(shipper.PollInterval)

	batch := testutil.RequireReceive(t, f.collector.Batches(), testTimeout, "first batch")
	if batch.WorkerID != "worker-e2e" {
		t.Fatalf("worker_id = %q", batch.WorkerID)
	}
	if len(batch.Entries) != 2 {
		t.Fatalf("batch has %d entries, want 2", len(batch.Entries))
	}
	want := logrecord.MillisecondTimestamp(f.clock.Now())
	for i, message := range []string{"hello\n", "partial"} {
		entry := batch.Entries[i]
		if entry.Message != message {
			t.Errorf("entry %d message = %q, want %q", i, entry.Message, message)
		}
		if entry.Severity != fnapi.SeverityInfo {
			t.Errorf("entry %d severity = %v, want INFO", i, entry.Severity)
		}
		// Both chunks were converted before the clock moved.
		if entry.Timestamp != (fnapi.Timestamp{Seconds: want.Seconds, Nanos: 535_000_000}) {
			t.Errorf("entry %d timestamp = %+v", i, entry.Timestamp)
		}
	}

	if f.console.String() != "hello\npartial" {
		t.Fatalf("console = %q, output must pass through", f.console.String())
	}

	stats := task.Stats()
	if stats.Batches != 1 || stats.Records != 2 || stats.Channel != logchannel.StateStreaming {
		t.Fatalf("Stats() = %+v", stats)
	}
}

// proto3LogEntry describes LogEntry.message as a proto3 string, so
// decoding with it applies the UTF-8 check a collector's generated
// code applies. The other LogEntry fields are skipped as unknown.
func proto3LogEntry(t *testing.T) protoreflect.MessageDescriptor {
	t.Helper()
	file, err := protodesc.NewFile(&descriptorpb.FileDescriptorProto{
		Name:    proto.String("workerlog_logentry_check.proto"),
		Package: proto.String("workerlog.check"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{{
			Name: proto.String("LogEntry"),
			Field: []*descriptorpb.FieldDescriptorProto{{
				Name:     proto.String("message"),
				JsonName: proto.String("message"),
				Number:   proto.Int32(3),
				Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:     descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
			}},
		}},
	}, nil)
	if err != nil {
		t.Fatalf("building descriptor: %v", err)
	}
	return file.Messages().ByName("LogEntry")
}

func decodeProto3(descriptor protoreflect.MessageDescriptor, entry fnapi.LogEntry) error {
	wire, err := entry.MarshalWire()
	if err != nil {
		return err
	}
	return proto.Unmarshal(wire, dynamicpb.NewMessage(descriptor))
}

func TestShippedMessagesAreValidProto3Strings(t *testing.T) {
	descriptor := proto3LogEntry(t)
	if err := decodeProto3(descriptor, fnapi.LogEntry{Message: "caf\xc3"}); err == nil {
		t.Fatal("proto3 decode accepted invalid UTF-8; the check below would prove nothing")
	}

	f := newFixture(t)
	task := f.start(t, "worker-binary")

	f.clock.WaitForTimers(1)
	chunks := []string{"caf\xc3", "\xa9 au lait\n", "\x89PNG\r\n\x1a\n\x00\xff", "plain\n"}
	for _, chunk := range chunks {
		f.tee.Write([]byte(chunk))
	}
	if err := task.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	entries := f.collector.Entries()
	if len(entries) != len(chunks) {
		t.Fatalf("collector received %d entries, want %d", len(entries), len(chunks))
	}
	for i, entry := range entries {
		if err := decodeProto3(descriptor, entry); err != nil {
			t.Errorf("entry %d (%q) rejected by proto3 decoder: %v", i, entry.Message, err)
		}
	}
	if entries[3].Message != "plain\n" {
		t.Fatalf("valid chunk altered: %q", entries[3].Message)
	}
	// Raw bytes still reach the console untouched.
	if f.console.String() != strings.Join(chunks, "") {
		t.Fatal("console pass-through was altered")
	}
}

func TestStopDrainsAndReleases(t *testing.T) {
	f := newFixture(t)
	task := f.start(t, "worker-stop")
	if f.tee.Subscribers() != 1 {
		t.Fatalf("Subscribers() = %d after Start, want 1", f.tee.Subscribers())
	}

	f.clock.WaitForTimers(1)
	for i := 0; i < 150; i++ {
		fmt.Fprintf(f.tee, "line %d\n", i)
	}
	if err := task.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if got := len(f.collector.Entries()); got != 150 {
		t.Fatalf("collector received %d entries after Stop, want 150", got)
	}
	end := testutil.RequireReceive(t, f.collector.Ended(), testTimeout, "stream end")
	if !end.HalfClosed {
		t.Fatal("stream was not half-closed on Stop")
	}
	if f.tee.Subscribers() != 0 {
		t.Fatal("task still subscribed after Stop")
	}
	if task.Stats().Channel != logchannel.StateClosed {
		t.Fatalf("channel state = %v, want closed", task.Stats().Channel)
	}

	// Output after the bridge is gone still reaches the console.
	fmt.Fprint(f.tee, "after stop\n")
	if !strings.HasSuffix(f.console.String(), "after stop\n") {
		t.Fatal("console pass-through stopped with the bridge")
	}
}

func TestConcurrentProducersDeliveredOnce(t *testing.T) {
	f := newFixture(t)
	stderr := capture.NewTee("stderr", f.console)
	source := capture.Multi(f.tee, stderr)

	task, err := Start(context.Background(), Config{
		WorkerID:    "worker-fan-in",
		Endpoint:    f.collector.Endpoint(),
		Source:      source,
		Clock:       f.clock,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		DialOptions: f.collector.DialOptions(),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	var wg sync.WaitGroup
	for _, tee := range []*capture.Tee{f.tee, stderr} {
		wg.Add(1)
		go func(tee *capture.Tee) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				fmt.Fprintf(tee, "%s %02d", tee.Name(), i)
			}
		}(tee)
	}
	wg.Wait()

	if err := task.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	seen := map[string]int{}
	last := map[string]string{}
	for _, entry := range f.collector.Entries() {
		seen[entry.Message]++
		producer := strings.Fields(entry.Message)[0]
		if previous, ok := last[producer]; ok && entry.Message <= previous {
			t.Fatalf("%s out of order: %q after %q", producer, entry.Message, previous)
		}
		last[producer] = entry.Message
	}
	if len(seen) != 100 {
		t.Fatalf("collector saw %d distinct entries, want 100", len(seen))
	}
	for message, count := range seen {
		if count != 1 {
			t.Fatalf("%q delivered %d times", message, count)
		}
	}
}

func TestCollectorFailureEndsTask(t *testing.T) {
	f := newFixture(t)
	f.collector.FailAfter(0, codes.Unavailable, "collector draining")
	task := f.start(t, "worker-fail")

	testutil.RequireReceive(t, f.collector.Ended(), testTimeout, "collector rejects stream")

	var err error
	for attempt := 0; ; attempt++ {
		if attempt == 100 {
			t.Fatal("task still running after 100 sends to a failed stream")
		}
		fmt.Fprintf(f.tee, "attempt %d\n", attempt)

		timerReady := make(chan struct{})
		go func() {
			f.clock.WaitForTimers(1)
			close(timerReady)
		}()
		select {
		case <-task.Done():
			err = task.Wait()
		case <-timerReady:
			f.clock.Advance(shipper.PollInterval)
			continue
		}
		break
	}

	if !errors.Is(err, shipper.ErrSend) {
		t.Fatalf("Wait() = %v, want ErrSend", err)
	}
	if f.tee.Subscribers() != 0 {
		t.Fatal("failed task still subscribed")
	}
	if task.Stats().Channel != logchannel.StateFailed {
		t.Fatalf("channel state = %v, want failed", task.Stats().Channel)
	}
}

func TestStartConnectFailure(t *testing.T) {
	tee := capture.NewTee("stdout", io.Discard)
	_, err := Start(context.Background(), Config{
		WorkerID: "worker-refused",
		Endpoint: "passthrough:///nowhere",
		Source:   tee,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		DialOptions: []grpc.DialOption{
			grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
				return nil, errors.New("connection refused")
			}),
		},
	})
	if !errors.Is(err, logchannel.ErrConnect) {
		t.Fatalf("Start error = %v, want ErrConnect", err)
	}
	if tee.Subscribers() != 0 {
		t.Fatal("failed Start left a subscription behind")
	}
}

func TestStartRequiresSource(t *testing.T) {
	if _, err := Start(context.Background(), Config{Endpoint: "localhost:1"}); err == nil {
		t.Fatal("expected error without Source")
	}
}

func TestContextCancellationStopsTask(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	task, err := Start(ctx, Config{
		WorkerID:    "worker-ctx",
		Endpoint:    f.collector.Endpoint(),
		Source:      f.tee,
		Clock:       f.clock,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		DialOptions: f.collector.DialOptions(),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	f.poll()
	cancel()
	testutil.RequireClosed(t, task.Done(), testTimeout, "task exit on cancel")
	if err := task.Wait(); err != nil {
		t.Fatalf("Wait() = %v, want nil", err)
	}
}
