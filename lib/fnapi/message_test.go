// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fnapi

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/encoding/protowire"
)

// goldenEntry is LogEntry{severity: INFO, timestamp: {seconds: 1,
// nanos: 5000000}, message: "hi"} as protoc-generated code encodes it.
var goldenEntry = []byte{
	0x08, 0x03,
	0x12, 0x07, 0x08, 0x01, 0x10, 0xc0, 0x96, 0xb1, 0x02,
	0x1a, 0x02, 'h', 'i',
}

func TestLogEntryMatchesGeneratedEncoding(t *testing.T) {
	entry := LogEntry{
		Severity:  SeverityInfo,
		Timestamp: Timestamp{Seconds: 1, Nanos: 5_000_000},
		Message:   "hi",
	}
	data, err := entry.MarshalWire()
	if err != nil {
		t.Fatalf("MarshalWire: %v", err)
	}
	if !bytes.Equal(data, goldenEntry) {
		t.Fatalf("encoding mismatch:\n got  % x\n want % x", data, goldenEntry)
	}

	list := LogEntryList{Entries: []LogEntry{entry}}
	listData, err := list.MarshalWire()
	if err != nil {
		t.Fatalf("MarshalWire(list): %v", err)
	}
	wantList := append([]byte{0x0a, byte(len(goldenEntry))}, goldenEntry...)
	if !bytes.Equal(listData, wantList) {
		t.Fatalf("list encoding mismatch:\n got  % x\n want % x", listData, wantList)
	}
}

func TestLogEntryListPreservesOrderAndMultilineMessages(t *testing.T) {
	original := LogEntryList{Entries: []LogEntry{
		{Severity: SeverityInfo, Timestamp: Timestamp{Seconds: 1708523456, Nanos: 123_000_000}, Message: "first\nsecond line\n"},
		{Severity: SeverityInfo, Timestamp: Timestamp{Seconds: 1708523456}, Message: "partial line without newline"},
		{Severity: SeverityInfo, Message: strings.Repeat("x", 70000)},
	}}

	data, err := original.MarshalWire()
	if err != nil {
		t.Fatalf("MarshalWire: %v", err)
	}
	var decoded LogEntryList
	if err := decoded.UnmarshalWire(data); err != nil {
		t.Fatalf("UnmarshalWire: %v", err)
	}
	if diff := cmp.Diff(original, decoded); diff != "" {
		t.Fatalf("decoded list differs (-want +got):\n%s", diff)
	}
}

func TestLogEntrySkipsUnknownFields(t *testing.T) {
	// Append the fields a Beam SDK would also set: trace (4),
	// instruction_id (5), transform_id (6), log_location (7),
	// thread (8).
	data := append([]byte{}, goldenEntry...)
	for number := protowire.Number(4); number <= 8; number++ {
		data = protowire.AppendTag(data, number, protowire.BytesType)
		data = protowire.AppendString(data, "ignored")
	}

	var entry LogEntry
	if err := entry.UnmarshalWire(data); err != nil {
		t.Fatalf("UnmarshalWire: %v", err)
	}
	want := LogEntry{Severity: SeverityInfo, Timestamp: Timestamp{Seconds: 1, Nanos: 5_000_000}, Message: "hi"}
	if entry != want {
		t.Fatalf("decoded %+v, want %+v", entry, want)
	}
}

func TestUnmarshalRejectsTruncatedInput(t *testing.T) {
	for cut := 1; cut < len(goldenEntry); cut++ {
		var entry LogEntry
		truncated := goldenEntry[:cut]
		// Cutting exactly between two fields leaves valid input.
		if cut == 2 || cut == 11 {
			if err := entry.UnmarshalWire(truncated); err != nil {
				t.Fatalf("cut at %d: unexpected error %v", cut, err)
			}
			continue
		}
		if err := entry.UnmarshalWire(truncated); err == nil {
			t.Fatalf("cut at %d: expected error for % x", cut, truncated)
		}
	}
}

func TestTimestampConversions(t *testing.T) {
	timestamp := Timestamp{Seconds: 1708523456, Nanos: 789_000_000}
	if got := timestamp.UnixMilli(); got != 1708523456789 {
		t.Fatalf("UnixMilli() = %d", got)
	}
	if got := timestamp.Time().UnixMilli(); got != 1708523456789 {
		t.Fatalf("Time().UnixMilli() = %d", got)
	}
}

func TestSeverityString(t *testing.T) {
	if SeverityInfo.String() != "INFO" {
		t.Fatalf("SeverityInfo.String() = %q", SeverityInfo.String())
	}
	if Severity(42).String() != "Severity(42)" {
		t.Fatalf("unknown severity String() = %q", Severity(42).String())
	}
}

func TestCodecRejectsForeignTypes(t *testing.T) {
	codec := Codec{}
	if codec.Name() != "proto" {
		t.Fatalf("Name() = %q", codec.Name())
	}
	if _, err := codec.Marshal("not a message"); err == nil {
		t.Fatal("Marshal accepted a string")
	}
	var target string
	if err := codec.Unmarshal(nil, &target); err == nil {
		t.Fatal("Unmarshal accepted a *string")
	}

	data, err := codec.Marshal(&LogControl{})
	if err != nil || len(data) != 0 {
		t.Fatalf("Marshal(LogControl) = %v, %v", data, err)
	}
	if err := codec.Unmarshal(goldenEntry, &LogControl{}); err != nil {
		t.Fatalf("LogControl should skip every field: %v", err)
	}
}
