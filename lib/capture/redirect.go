// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"errors"
	"os"
	"sync"
	"unicode/utf8"
)

// ErrUnsupported is returned by RedirectFD on platforms without dup2.
var ErrUnsupported = errors.New("capture: descriptor redirection not supported on this platform")

// pumpBufferSize bounds a single pipe read, and therefore a single
// chunk delivered by a Redirect.
const pumpBufferSize = 32 * 1024

// Redirect captures everything written to one file descriptor. While
// active, the descriptor refers to the write end of a pipe; a pump
// goroutine reads the pipe and writes each read through a Tee whose
// destination is a duplicate of the original descriptor. One pipe read
// is one chunk, so chunk boundaries follow the kernel's pipe buffering
// rather than the writer's calls. A UTF-8 sequence cut by a read is
// carried over to the next chunk, so chunks never split a rune.
type Redirect struct {
	fd       int
	saved    int
	tee      *Tee
	reader   *os.File
	original *os.File
	done     chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// Subscribe implements Source.
func (r *Redirect) Subscribe(handler Handler) func() {
	return r.tee.Subscribe(handler)
}

// FD returns the redirected descriptor number.
func (r *Redirect) FD() int { return r.fd }

// Done is closed when the pump has read the pipe to EOF. That happens
// after Close once every other holder of the pipe's write end (child
// processes that inherited the descriptor) has exited.
func (r *Redirect) Done() <-chan struct{} { return r.done }

// Close points the descriptor back at the original file. Data already
// in the pipe is still pumped to the original destination and to
// subscribers; wait on Done to know when that has finished. Close does
// not wait itself because an inherited write end in a running child
// would block it indefinitely.
func (r *Redirect) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = restoreDescriptor(r.saved, r.fd)
	})
	return r.closeErr
}

func (r *Redirect) pump() {
	defer close(r.done)
	defer r.original.Close()
	defer r.reader.Close()

	// A failing destination (closed terminal) must not stop the pump,
	// or writers would block on a full pipe.
	buffer := make([]byte, pumpBufferSize)
	carried := 0
	for {
		n, err := r.reader.Read(buffer[carried:])
		n += carried
		complete := completeRunes(buffer[:n])
		if complete > 0 {
			_, _ = r.tee.Write(buffer[:complete])
		}
		carried = copy(buffer, buffer[complete:n])
		if err != nil {
			if carried > 0 {
				_, _ = r.tee.Write(buffer[:carried])
			}
			return
		}
	}
}

// completeRunes returns the length of the longest prefix of p that
// does not end inside a UTF-8 sequence. At most utf8.UTFMax-1 trailing
// bytes are excluded. Bytes that can never start a valid sequence
// count as complete.
func completeRunes(p []byte) int {
	for i := len(p) - 1; i >= 0 && i > len(p)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(p[i]) {
			continue
		}
		if utf8.FullRune(p[i:]) {
			return len(p)
		}
		return i
	}
	return len(p)
}
