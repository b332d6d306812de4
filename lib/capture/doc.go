// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package capture intercepts textual output on its way to the console
// and hands each chunk to subscribers.
//
// Two layers are provided. [Tee] is an io.Writer that forwards every
// write to a destination and then notifies subscribers with the same
// bytes; use it when the code producing output can be pointed at a
// writer. [Redirect] works one level down: it swaps a file descriptor
// for a pipe and pumps the pipe through a Tee whose destination is the
// original descriptor, so output written by anything in the process
// (including inherited descriptors in child processes) is captured
// without changing the writers. [Stdio] redirects descriptors 1 and 2
// together and presents them as one [Source].
//
// Subscribers are called synchronously on the writer's goroutine. They
// must be fast, must not block, and must not retain the chunk slice
// after returning.
package capture
