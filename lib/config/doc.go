// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the bridge's YAML configuration.
//
// A configuration file is named either by the WORKERLOG_CONFIG
// environment variable (via [Load]) or by a --config flag (via
// [LoadFile]); [Resolve] picks between them and falls back to
// [Default] when neither is given, since a worker started by a runner
// normally receives everything it needs as flags. There is no
// discovery of files in well-known locations.
//
// The file may carry development, staging, and production sections
// that override base values when [Config].Environment matches.
// Production without its own section defaults to JSON logs.
//
// ${VAR} and ${VAR:-default} are expanded in the worker identity and
// endpoint fields after loading. No other environment variables
// override config values; command-line flags do, in the binary.
package config
