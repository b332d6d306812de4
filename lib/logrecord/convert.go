// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logrecord converts raw chunks of captured process output
// into structured log entries.
package logrecord

import (
	"strings"
	"time"

	"github.com/bureau-foundation/workerlog/lib/clock"
	"github.com/bureau-foundation/workerlog/lib/fnapi"
)

// DefaultSeverity is assigned to every converted chunk. Captured text
// is not inspected for a level.
const DefaultSeverity = fnapi.SeverityInfo

// Converter stamps chunks with the time they are converted.
type Converter struct {
	clock clock.Clock
}

// NewConverter returns a Converter reading time from clk. A nil clk
// means the real clock.
func NewConverter(clk clock.Clock) *Converter {
	if clk == nil {
		clk = clock.Real()
	}
	return &Converter{clock: clk}
}

// InvalidUTF8Replacement stands in for each run of bytes in a chunk
// that is not valid UTF-8. LogEntry.message is a proto3 string, which
// collectors refuse to decode when it holds invalid UTF-8.
const InvalidUTF8Replacement = "\uFFFD"

// Convert turns one chunk into one entry. The chunk becomes the
// message verbatim, embedded newlines and partial lines included,
// except that invalid UTF-8 is replaced with InvalidUTF8Replacement.
// Convert reads the clock exactly once.
func (c *Converter) Convert(chunk string) fnapi.LogEntry {
	return fnapi.LogEntry{
		Severity:  DefaultSeverity,
		Message:   strings.ToValidUTF8(chunk, InvalidUTF8Replacement),
		Timestamp: MillisecondTimestamp(c.clock.Now()),
	}
}

// MillisecondTimestamp truncates t to millisecond precision and splits
// it into seconds and nanoseconds. Seconds are floored, so Nanos stays
// in [0, 1e9) for times before the epoch too, and Nanos is always a
// whole number of milliseconds.
func MillisecondTimestamp(t time.Time) fnapi.Timestamp {
	milliseconds := t.UnixMilli()
	seconds := milliseconds / 1000
	remainder := milliseconds % 1000
	if remainder < 0 {
		seconds--
		remainder += 1000
	}
	return fnapi.Timestamp{
		Seconds: seconds,
		Nanos:   int32(remainder * int64(time.Millisecond)),
	}
}
