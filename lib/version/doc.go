// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for workerlog binaries.
//
// [GitCommit], [GitDirty], [BuildTime], and [Version] are injected with
// -ldflags -X at build time:
//
//	go build -ldflags "-X github.com/bureau-foundation/workerlog/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// When they are not injected (go install, go run, tests), the commit
// and dirty flag are read from the VCS stamp the Go toolchain embeds,
// if any.
package version
