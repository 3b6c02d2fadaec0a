// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"io/fs"
	"os"

	"github.com/bureau-foundation/courier/lib/filestore"
	"github.com/bureau-foundation/courier/lib/imagepipe"
	"github.com/bureau-foundation/courier/lib/netutil"
	"github.com/bureau-foundation/courier/protocol"
	"github.com/bureau-foundation/courier/transport"
)

// Class groups errors by where they originate and what the server
// does about them.
type Class int

const (
	// ClassInternal is anything not otherwise classified.
	ClassInternal Class = iota

	// ClassProtocol: the peer sent bytes that do not form a valid
	// request (malformed message, oversized frame).
	ClassProtocol

	// ClassResource: the request was well formed but could not be
	// stored (invalid name, name exhaustion, filesystem failure).
	ClassResource

	// ClassCodec: the image could not be decoded.
	ClassCodec

	// ClassConnection: the transport failed (peer closed, reset,
	// timeout). Ends the connection.
	ClassConnection

	// ClassStartup: the server could not bind. Fatal.
	ClassStartup
)

func (c Class) String() string {
	switch c {
	case ClassProtocol:
		return "protocol"
	case ClassResource:
		return "resource"
	case ClassCodec:
		return "codec"
	case ClassConnection:
		return "connection"
	case ClassStartup:
		return "startup"
	default:
		return "internal"
	}
}

// classify maps an error to its class and the code reported to the
// client.
func classify(err error) (Class, protocol.ErrorCode) {
	var bindErr *transport.BindError
	var pathErr *fs.PathError
	var linkErr *os.LinkError

	switch {
	case errors.Is(err, protocol.ErrMalformedMessage),
		errors.Is(err, transport.ErrFrameTooLarge):
		return ClassProtocol, protocol.CodeMalformedMessage
	case errors.Is(err, filestore.ErrInvalidName):
		return ClassResource, protocol.CodeInvalidName
	case errors.Is(err, filestore.ErrAlreadyExists):
		return ClassResource, protocol.CodeAlreadyExists
	case errors.Is(err, imagepipe.ErrUnsupportedFormat):
		return ClassCodec, protocol.CodeUnsupportedFormat
	case errors.Is(err, imagepipe.ErrCorruptImage):
		return ClassCodec, protocol.CodeCorruptImage
	case errors.As(err, &bindErr):
		return ClassStartup, protocol.CodeInternal
	case errors.Is(err, transport.ErrConnectionClosed),
		netutil.IsExpectedCloseError(err),
		netutil.IsTimeout(err):
		return ClassConnection, protocol.CodeInternal
	case errors.As(err, &pathErr), errors.As(err, &linkErr):
		return ClassResource, protocol.CodeStorage
	default:
		return ClassInternal, protocol.CodeInternal
	}
}
