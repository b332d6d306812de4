// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !(linux || darwin)

package capture

// RedirectFD is not available on this platform. Use a Tee instead.
func RedirectFD(fd int, name string) (*Redirect, error) {
	return nil, ErrUnsupported
}

func restoreDescriptor(saved, fd int) error {
	return ErrUnsupported
}
