// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Exit codes used when the child never ran.
const (
	// ExitCannotExecute matches the shell's code for a command that
	// was found but could not be started.
	ExitCannotExecute = 126

	// ExitFailure is the generic failure code.
	ExitFailure = 1
)

// Fatal writes "error: err" to stderr and exits 1. Use it in main for
// errors that occur before the structured logger is set up.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(ExitFailure)
}

// ExitCode converts the error from exec.Cmd.Wait into an exit code:
// 0 for nil, the child's own code when it exited, 128+signal when it
// was killed by a signal, ExitFailure otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return ExitFailure
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal())
	}
	if code := exitErr.ExitCode(); code >= 0 {
		return code
	}
	return ExitFailure
}
