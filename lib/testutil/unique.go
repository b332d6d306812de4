// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var workerCounter atomic.Uint64

// WorkerID returns "prefix-N" with N increasing across the test binary.
//
//	id := testutil.WorkerID("sdk") // "sdk-1", "sdk-2", ...
func WorkerID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, workerCounter.Add(1))
}
