// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport turns a byte stream into discrete frames and
// provides the TCP plumbing beneath the Courier client and server.
//
// A frame is a 4-byte big-endian payload length followed by exactly
// that many payload bytes. One frame carries one encoded message. A
// zero-length payload is a legal frame.
//
// [ReadFrame] blocks until a whole frame has arrived. It returns
// [ErrConnectionClosed] when the peer goes away before the frame is
// complete and [ErrFrameTooLarge] when the declared length exceeds
// the reader's limit; the limit is checked against the header before
// any payload buffer is allocated, so a hostile length prefix cannot
// force a large allocation. [WriteFrame] emits header and payload in a
// single write.
//
// [Conn] attaches a frame limit and per-frame deadlines to a net.Conn.
// [Listen] binds the server socket and reports failures as
// [*BindError]. [TCPDialer] implements [Dialer] for the client.
package transport
