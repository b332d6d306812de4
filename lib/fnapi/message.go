// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fnapi

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Severity mirrors LogEntry.Severity.Enum.
type Severity int32

const (
	SeverityUnspecified Severity = 0
	SeverityTrace       Severity = 1
	SeverityDebug       Severity = 2
	SeverityInfo        Severity = 3
	SeverityNotice      Severity = 4
	SeverityWarn        Severity = 5
	SeverityError       Severity = 6
	SeverityCritical    Severity = 7
)

var severityNames = map[Severity]string{
	SeverityUnspecified: "UNSPECIFIED",
	SeverityTrace:       "TRACE",
	SeverityDebug:       "DEBUG",
	SeverityInfo:        "INFO",
	SeverityNotice:      "NOTICE",
	SeverityWarn:        "WARN",
	SeverityError:       "ERROR",
	SeverityCritical:    "CRITICAL",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Severity(%d)", int32(s))
}

// Timestamp is a google.protobuf.Timestamp. Nanos is in [0, 1e9).
type Timestamp struct {
	Seconds int64
	Nanos   int32
}

// Time converts the timestamp to a time.Time in UTC.
func (t Timestamp) Time() time.Time {
	return time.Unix(t.Seconds, int64(t.Nanos)).UTC()
}

// UnixMilli returns the timestamp as milliseconds since the epoch.
func (t Timestamp) UnixMilli() int64 {
	return t.Seconds*1000 + int64(t.Nanos)/1_000_000
}

// LogEntry is one structured log record.
type LogEntry struct {
	Severity  Severity
	Timestamp Timestamp
	Message   string
}

// LogEntryList is the message the worker writes to the logging
// stream. One list is one batch.
type LogEntryList struct {
	Entries []LogEntry
}

// LogControl is the message a collector may send back on the logging
// stream. It carries no fields.
type LogControl struct{}

// Message is implemented by every type [Codec] can carry.
type Message interface {
	MarshalWire() ([]byte, error)
	UnmarshalWire(data []byte) error
}

// Field numbers from beam_fn_api.proto.
const (
	timestampSecondsField protowire.Number = 1
	timestampNanosField   protowire.Number = 2

	entrySeverityField  protowire.Number = 1
	entryTimestampField protowire.Number = 2
	entryMessageField   protowire.Number = 3

	listEntriesField protowire.Number = 1
)

func (t Timestamp) appendWire(b []byte) []byte {
	if t.Seconds != 0 {
		b = protowire.AppendTag(b, timestampSecondsField, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(t.Seconds))
	}
	if t.Nanos != 0 {
		b = protowire.AppendTag(b, timestampNanosField, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(t.Nanos)))
	}
	return b
}

func (t *Timestamp) unmarshalWire(data []byte) error {
	*t = Timestamp{}
	return walkFields(data, func(number protowire.Number, kind protowire.Type, value []byte) (int, error) {
		switch {
		case number == timestampSecondsField && kind == protowire.VarintType:
			v, n := protowire.ConsumeVarint(value)
			t.Seconds = int64(v)
			return n, nil
		case number == timestampNanosField && kind == protowire.VarintType:
			v, n := protowire.ConsumeVarint(value)
			t.Nanos = int32(v)
			return n, nil
		}
		return 0, nil
	})
}

func (e *LogEntry) appendWire(b []byte) []byte {
	if e.Severity != SeverityUnspecified {
		b = protowire.AppendTag(b, entrySeverityField, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(e.Severity)))
	}
	// The timestamp is a message field, so it is written even when
	// zero to keep it present on the wire.
	b = protowire.AppendTag(b, entryTimestampField, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Timestamp.appendWire(nil))
	if e.Message != "" {
		b = protowire.AppendTag(b, entryMessageField, protowire.BytesType)
		b = protowire.AppendString(b, e.Message)
	}
	return b
}

// MarshalWire encodes the entry in protobuf binary form.
func (e *LogEntry) MarshalWire() ([]byte, error) {
	return e.appendWire(nil), nil
}

// UnmarshalWire decodes a protobuf-encoded LogEntry. Fields this
// package does not model (trace, instruction_id, transform_id, ...)
// are skipped.
func (e *LogEntry) UnmarshalWire(data []byte) error {
	*e = LogEntry{}
	return walkFields(data, func(number protowire.Number, kind protowire.Type, value []byte) (int, error) {
		switch {
		case number == entrySeverityField && kind == protowire.VarintType:
			v, n := protowire.ConsumeVarint(value)
			e.Severity = Severity(int32(v))
			return n, nil
		case number == entryTimestampField && kind == protowire.BytesType:
			v, n := protowire.ConsumeBytes(value)
			if n < 0 {
				return n, nil
			}
			if err := e.Timestamp.unmarshalWire(v); err != nil {
				return 0, fmt.Errorf("timestamp: %w", err)
			}
			return n, nil
		case number == entryMessageField && kind == protowire.BytesType:
			v, n := protowire.ConsumeString(value)
			e.Message = v
			return n, nil
		}
		return 0, nil
	})
}

// MarshalWire encodes the list in protobuf binary form.
func (l *LogEntryList) MarshalWire() ([]byte, error) {
	var b []byte
	for i := range l.Entries {
		b = protowire.AppendTag(b, listEntriesField, protowire.BytesType)
		b = protowire.AppendBytes(b, l.Entries[i].appendWire(nil))
	}
	return b, nil
}

// UnmarshalWire decodes a protobuf-encoded LogEntry.List.
func (l *LogEntryList) UnmarshalWire(data []byte) error {
	*l = LogEntryList{}
	return walkFields(data, func(number protowire.Number, kind protowire.Type, value []byte) (int, error) {
		if number != listEntriesField || kind != protowire.BytesType {
			return 0, nil
		}
		v, n := protowire.ConsumeBytes(value)
		if n < 0 {
			return n, nil
		}
		var entry LogEntry
		if err := entry.UnmarshalWire(v); err != nil {
			return 0, fmt.Errorf("entry %d: %w", len(l.Entries), err)
		}
		l.Entries = append(l.Entries, entry)
		return n, nil
	})
}

// MarshalWire encodes the empty control message.
func (*LogControl) MarshalWire() ([]byte, error) { return nil, nil }

// UnmarshalWire accepts any well-formed message and discards it.
func (*LogControl) UnmarshalWire(data []byte) error {
	return walkFields(data, func(protowire.Number, protowire.Type, []byte) (int, error) {
		return 0, nil
	})
}

// walkFields iterates over the fields in data. For each field, visit
// receives the bytes following the tag and returns how many of them
// it consumed. Zero means the field was not recognised and is skipped;
// a negative count is a protowire error code.
func walkFields(data []byte, visit func(number protowire.Number, kind protowire.Type, value []byte) (int, error)) error {
	for len(data) > 0 {
		number, kind, tagLength := protowire.ConsumeTag(data)
		if tagLength < 0 {
			return fmt.Errorf("malformed tag: %w", protowire.ParseError(tagLength))
		}
		data = data[tagLength:]

		consumed, err := visit(number, kind, data)
		if err != nil {
			return err
		}
		if consumed == 0 {
			consumed = protowire.ConsumeFieldValue(number, kind, data)
		}
		if consumed < 0 {
			return fmt.Errorf("malformed field %d: %w", number, protowire.ParseError(consumed))
		}
		data = data[consumed:]
	}
	return nil
}
