// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package client implements the interactive side of a Courier
// connection.
//
// A [Session] owns one connection and enforces strict turn-taking:
// [Session.Send] writes one request frame and blocks until the single
// response frame for it arrives. [Session.Run] drives a session from a
// line-oriented input:
//
//	.file <path>    send the file at path, stored verbatim by the server
//	.image <path>   send the image at path, stored as PNG by the server
//	.quit           ask the server to close the connection
//	anything else   send the line as a text message
//
// Local failures such as a missing file are reported and the session
// continues. End of input behaves like .quit.
package client
