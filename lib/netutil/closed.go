// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil classifies network errors for connection handlers.
package netutil

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"
)

// IsExpectedCloseError reports whether err is a normal connection
// termination: EOF, a locally closed connection or in-memory pipe, a
// broken pipe, or a connection reset. A client that disconnects while the server is
// reading or writing produces one of these; they end the connection
// but are not logged as errors.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}

// IsTimeout reports whether err is a deadline expiry on a connection.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
