// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds entrypoint helpers for workerlog binaries:
// reporting a fatal error before a logger exists, and turning a child
// process's outcome into this process's exit code.
package process
