// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package server accepts Courier connections and handles their
// requests.
//
// Each accepted TCP connection runs in its own goroutine through a
// small state machine:
//
//	Reading ──frame──▶ Dispatching ──▶ Responding ──▶ Reading
//	   │                                   │
//	   └──close/oversize/error──▶ Closed ◀─┴──quit ack / write error
//
// A connection handles one request at a time and writes exactly one
// response frame per request frame. Per-request failures (a malformed
// frame, an invalid file name, an undecodable image, a storage error)
// are reported to the client in the response and the connection keeps
// reading. Transport failures (peer close, oversized frame, I/O
// errors) end the connection without affecting any other.
//
// Stored files go to a [Saver] for files and another for images;
// images first pass through an [ImageConverter] that canonicalises
// them to PNG. Both are capabilities supplied through [Options], so
// tests and alternate deployments can substitute their own.
//
// [Server.Serve] returns when its context is cancelled, after closing
// the listener and every live connection and waiting for their
// handlers to finish.
package server
