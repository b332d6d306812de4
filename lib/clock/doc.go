// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the log
// bridge.
//
// Two things in the bridge read time: the entry converter stamps every
// captured chunk with the wall clock, and the batch shipper sleeps for
// a fixed poll interval when the record queue is empty. Both take a
// [Clock] so that tests can control time deterministically.
//
// Production code uses [Real]. Tests use [Fake]:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go loop(c)
//	c.WaitForTimers(1)                 // loop is now sleeping
//	c.Advance(100 * time.Millisecond)  // wake it up
//
// WaitForTimers removes the race between a goroutine registering a
// sleep and the test advancing time past it.
package clock
