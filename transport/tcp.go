// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Compile-time interface check.
var _ Dialer = (*TCPDialer)(nil)

// BindError reports that the server could not bind its listening
// address (port in use, permission denied, unresolvable host). It is
// a startup failure: the process reports it and exits.
type BindError struct {
	Address string
	Err     error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("binding %s: %v", e.Address, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// Listen binds a TCP listener on address (e.g. "127.0.0.1:11111", or
// ":0" for a random port). Failures are returned as *BindError.
func Listen(address string) (net.Listener, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, &BindError{Address: address, Err: err}
	}
	return listener, nil
}

// TCPDialer opens TCP connections to a Courier server.
type TCPDialer struct {
	// Timeout is the maximum time to wait for a TCP connection to be
	// established. Zero means no standalone timeout; only the context
	// deadline applies.
	Timeout time.Duration
}

// DialContext opens a TCP connection to the given address (host:port).
func (d *TCPDialer) DialContext(ctx context.Context, address string) (net.Conn, error) {
	return (&net.Dialer{Timeout: d.Timeout}).DialContext(ctx, "tcp", address)
}
