// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by workerlog tests.
//
// [RequireReceive], [RequireSend], and [RequireClosed] bound a wait on
// a channel with a wall-clock timeout so a broken test fails instead of
// hanging. They are the only place tests touch real time; everything
// time-dependent in the code under test runs on lib/clock's fake.
//
// [WorkerID] hands out distinct worker identities so concurrent tests
// against one collector can tell their streams apart.
//
// Helpers call t.Fatalf on failure.
package testutil
