// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/bureau-foundation/courier/lib/netutil"
)

// FrameHeaderLength is the size of the frame length prefix: one
// big-endian uint32.
const FrameHeaderLength = 4

// DefaultMaxFrameSize is the largest payload accepted when no other
// limit is configured (10 MiB).
const DefaultMaxFrameSize = 10 * 1024 * 1024

// ErrFrameTooLarge is returned when a frame's declared length exceeds
// the configured maximum. On read the check happens before any payload
// buffer is allocated.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// ErrConnectionClosed is returned by [ReadFrame] when the stream ends
// before a complete frame arrives: a clean close between frames, a
// close mid-header, or a close mid-payload.
var ErrConnectionClosed = errors.New("connection closed")

// WriteFrame writes payload as one frame: [4-byte big-endian length]
// [payload]. The header and payload go out in a single Write so a
// frame is never interleaved with another writer's bytes on a shared
// stream. Short writes are reported as errors by the io.Writer
// contract; net.Conn retries internally until the frame completes.
func WriteFrame(w io.Writer, payload []byte, maxSize int) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	if len(payload) > maxSize || uint64(len(payload)) > uint64(^uint32(0)) {
		return fmt.Errorf("write frame of %d bytes (max %d): %w", len(payload), maxSize, ErrFrameTooLarge)
	}

	frame := make([]byte, FrameHeaderLength+len(payload))
	binary.BigEndian.PutUint32(frame[:FrameHeaderLength], uint32(len(payload)))
	copy(frame[FrameHeaderLength:], payload)

	if _, err := w.Write(frame); err != nil {
		if netutil.IsExpectedCloseError(err) {
			return fmt.Errorf("write frame: %w: %w", ErrConnectionClosed, err)
		}
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame reads exactly one frame from r and returns its payload.
// Blocks until the whole frame has arrived. A zero-length frame
// returns an empty, non-nil slice.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}

	var header [FrameHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, readError("read frame header", err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if uint64(length) > uint64(maxSize) {
		return nil, fmt.Errorf("frame length %d exceeds maximum %d: %w", length, maxSize, ErrFrameTooLarge)
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, readError("read frame payload", err)
		}
	}
	return payload, nil
}

// readError maps stream termination (EOF, a partial frame cut off by
// EOF, a reset or locally closed socket) to ErrConnectionClosed and
// wraps everything else unchanged.
func readError(operation string, err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) || netutil.IsExpectedCloseError(err) {
		return fmt.Errorf("%s: %w: %w", operation, ErrConnectionClosed, err)
	}
	return fmt.Errorf("%s: %w", operation, err)
}
