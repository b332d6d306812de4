// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fnapi implements the slice of the Beam Fn API logging
// protocol that a worker needs to push its output to a log collector.
//
// The collector exposes one bidirectional streaming method,
// [LoggingMethod]. The worker sends [LogEntryList] messages and may
// receive [LogControl] messages back. The message types here are
// encoded by hand with protowire and are byte compatible with the
// generated org.apache.beam.model.fn_execution.v1 types, so a stock
// Beam runner can act as the collector.
//
// [Codec] plugs the hand-written messages into gRPC. The package also
// registers two extra gRPC compressors, "zstd" and "lz4", alongside
// gRPC's built-in "gzip".
package fnapi
