// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux || darwin

package capture

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// RedirectFD starts capturing fd. name labels the stream. The original
// descriptor is duplicated close-on-exec so child processes only
// inherit the pipe, never the saved copy.
func RedirectFD(fd int, name string) (*Redirect, error) {
	saved, err := unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("duplicating %s (fd %d): %w", name, fd, err)
	}
	original := os.NewFile(uintptr(saved), name+"-original")

	reader, writer, err := os.Pipe()
	if err != nil {
		original.Close()
		return nil, fmt.Errorf("creating pipe for %s: %w", name, err)
	}

	if err := unix.Dup2(int(writer.Fd()), fd); err != nil {
		reader.Close()
		writer.Close()
		original.Close()
		return nil, fmt.Errorf("redirecting %s (fd %d) to pipe: %w", name, fd, err)
	}
	// fd now holds the only write end we need.
	writer.Close()

	redirect := &Redirect{
		fd:       fd,
		saved:    saved,
		tee:      NewTee(name, original),
		reader:   reader,
		original: original,
		done:     make(chan struct{}),
	}
	go redirect.pump()
	return redirect, nil
}

func restoreDescriptor(saved, fd int) error {
	if err := unix.Dup2(saved, fd); err != nil {
		return fmt.Errorf("restoring fd %d: %w", fd, err)
	}
	return nil
}
