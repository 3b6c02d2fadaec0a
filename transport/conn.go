// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"net"
	"time"
)

// Conn is a framed view of a stream connection. Each ReadFrame or
// WriteFrame call moves exactly one frame; callers never see partial
// frames.
//
// A Conn is not safe for concurrent reads or concurrent writes. One
// reader and one writer may run concurrently.
type Conn struct {
	net.Conn

	// MaxFrameSize bounds both directions. Zero means
	// DefaultMaxFrameSize.
	MaxFrameSize int

	// ReadTimeout, when positive, is the deadline for a complete
	// frame to arrive, measured from the start of each ReadFrame.
	ReadTimeout time.Duration

	// WriteTimeout, when positive, is the deadline for each
	// WriteFrame.
	WriteTimeout time.Duration
}

// NewConn wraps conn with the given frame limit.
func NewConn(conn net.Conn, maxFrameSize int) *Conn {
	return &Conn{Conn: conn, MaxFrameSize: maxFrameSize}
}

// FrameLimit returns the effective maximum payload size.
func (c *Conn) FrameLimit() int {
	if c.MaxFrameSize <= 0 {
		return DefaultMaxFrameSize
	}
	return c.MaxFrameSize
}

// ReadFrame reads the next frame's payload.
func (c *Conn) ReadFrame() (payload []byte, err error) {
	if c.ReadTimeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.ReadTimeout)); err != nil {
			return nil, fmt.Errorf("setting read deadline: %w", err)
		}
		defer func() {
			if clearErr := c.Conn.SetReadDeadline(time.Time{}); clearErr != nil && err == nil {
				err = fmt.Errorf("clearing read deadline: %w", clearErr)
			}
		}()
	}
	return ReadFrame(c.Conn, c.MaxFrameSize)
}

// WriteFrame writes payload as one frame.
func (c *Conn) WriteFrame(payload []byte) (err error) {
	if c.WriteTimeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.WriteTimeout)); err != nil {
			return fmt.Errorf("setting write deadline: %w", err)
		}
		defer func() {
			if clearErr := c.Conn.SetWriteDeadline(time.Time{}); clearErr != nil && err == nil {
				err = fmt.Errorf("clearing write deadline: %w", clearErr)
			}
		}()
	}
	return WriteFrame(c.Conn, payload, c.MaxFrameSize)
}
