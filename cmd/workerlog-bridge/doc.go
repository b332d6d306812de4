// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Workerlog-bridge starts a data-processing worker and ships
// everything it prints to the runner's log collector.
//
// A runner launches it with the same flags it would give an SDK
// worker, followed by the worker command:
//
//	workerlog-bridge --id=sdk-1 --logging_endpoint=localhost:12370 \
//	    --control_endpoint=localhost:12371 --options='{"runner":"portable"}' \
//	    -- ./worker --mode=sdk
//
// When a logging endpoint is configured, the bridge redirects its own
// stdout and stderr descriptors into pipes before starting the worker,
// so the worker (which inherits them) and the bridge's own log lines
// are captured together. Every chunk still reaches the original
// console. Captured chunks become INFO log entries, streamed in batches
// of up to 100 over one BeamFnLogging/Logging gRPC stream tagged with
// the worker id.
//
// Records follow pipe reads, not the worker's writes. Small writes
// that reach the pipe close together arrive as one record, and a write
// larger than 32 KiB arrives as several. Lines are never split on
// purpose, and a UTF-8 character is never divided between records.
// Bytes that are not valid UTF-8 are replaced with U+FFFD in the
// shipped message; the console still receives them unchanged.
//
// Data flow:
//
//	worker output → fd pipe → capture tee → entry → queue → shipper → collector
//
// The worker receives WORKER_ID, CONTROL_ENDPOINT, and PIPELINE_OPTIONS
// in its environment. SIGINT, SIGTERM, SIGHUP, and SIGQUIT are
// forwarded to it. The bridge exits with the worker's exit code,
// except that a log shipping failure terminates the worker and exits 1.
// Shipping is not retried: a broken collector connection is fatal.
//
// Without --id a random worker id is generated and a warning logged.
// Configuration may also come from a YAML file (--config or
// WORKERLOG_CONFIG); flags override it.
package main
