// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logchannel owns the one gRPC stream a worker uses to push
// its log entries to the collector.
//
// [Dial] creates the client connection, attaches the worker identity
// as stream metadata, and opens the bidirectional
// BeamFnLogging/Logging stream before returning. The stream lives
// until [Channel.Close] or the first failure; there is no reconnect.
// Each [Channel.Send] writes one LogEntry.List message.
//
// The collector may send LogControl messages back. They carry nothing
// the bridge acts on, so a background receiver discards them; its real
// job is to observe the stream's terminal status. gRPC reports a
// server-side failure to the sender only as io.EOF, and the receiver is
// what turns that into the collector's actual error.
//
// Connection lifecycle (see [State]):
//
//	Unconnected -> Connected -> Streaming -> Closed
//	                    \            \
//	                     `-> Failed   `-> Failed
//
// No transition leads back.
package logchannel
