// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"net"
)

// Dialer opens connections to a Courier server. The client session
// depends on this interface so tests can substitute in-memory pipes.
type Dialer interface {
	// DialContext opens a stream connection to address (host:port).
	DialContext(ctx context.Context, address string) (net.Conn, error)
}
