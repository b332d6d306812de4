// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"errors"
	"fmt"
	"os"
)

// StdioOptions selects which standard streams CaptureStdio redirects.
type StdioOptions struct {
	Stdout bool
	Stderr bool
}

// Stdio is the process's standard output and standard error captured
// together. Its Subscribe fans in both streams, so one handler sees
// chunks from two independent producers.
type Stdio struct {
	redirects []*Redirect
	source    Source
}

// CaptureStdio redirects the selected standard streams. If a later
// redirection fails, earlier ones are undone before returning.
func CaptureStdio(options StdioOptions) (*Stdio, error) {
	type stream struct {
		enabled bool
		file    *os.File
		name    string
	}
	streams := []stream{
		{options.Stdout, os.Stdout, "stdout"},
		{options.Stderr, os.Stderr, "stderr"},
	}

	stdio := &Stdio{}
	for _, s := range streams {
		if !s.enabled {
			continue
		}
		redirect, err := RedirectFD(int(s.file.Fd()), s.name)
		if err != nil {
			stdio.Close()
			return nil, fmt.Errorf("capturing %s: %w", s.name, err)
		}
		stdio.redirects = append(stdio.redirects, redirect)
	}

	sources := make([]Source, len(stdio.redirects))
	for i, redirect := range stdio.redirects {
		sources[i] = redirect
	}
	stdio.source = Multi(sources...)
	return stdio, nil
}

// Subscribe implements Source.
func (s *Stdio) Subscribe(handler Handler) func() {
	return s.source.Subscribe(handler)
}

// Streams returns the names of the captured streams.
func (s *Stdio) Streams() []string {
	names := make([]string, len(s.redirects))
	for i, redirect := range s.redirects {
		names[i] = redirect.tee.Name()
	}
	return names
}

// Close restores every redirected descriptor.
func (s *Stdio) Close() error {
	var errs []error
	for _, redirect := range s.redirects {
		errs = append(errs, redirect.Close())
	}
	return errors.Join(errs...)
}

// Done is closed once every redirect's pump has drained.
func (s *Stdio) Done() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, redirect := range s.redirects {
			<-redirect.Done()
		}
	}()
	return done
}
