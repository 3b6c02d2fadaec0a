// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"fmt"

	"github.com/bureau-foundation/courier/lib/codec"
)

// ErrorCode classifies a failed request on the wire.
type ErrorCode string

const (
	// CodeMalformedMessage: the request frame did not decode.
	CodeMalformedMessage ErrorCode = "malformed_message"

	// CodeInvalidName: the file name would escape the store directory.
	CodeInvalidName ErrorCode = "invalid_name"

	// CodeAlreadyExists: no free name could be found for the file.
	CodeAlreadyExists ErrorCode = "already_exists"

	// CodeUnsupportedFormat: no known image codec recognised the bytes.
	CodeUnsupportedFormat ErrorCode = "unsupported_format"

	// CodeCorruptImage: the image format was recognised but the pixel
	// data could not be decoded.
	CodeCorruptImage ErrorCode = "corrupt_image"

	// CodeStorage: the server failed to write to its filesystem.
	CodeStorage ErrorCode = "storage"

	// CodeInternal: any other server-side failure.
	CodeInternal ErrorCode = "internal"
)

// Response is the server's answer to one request. Successful
// responses set OK and the fields relevant to the request kind;
// failed responses set Code and Error.
type Response struct {
	OK    bool      `cbor:"ok"`
	Code  ErrorCode `cbor:"code,omitempty"`
	Error string    `cbor:"error,omitempty"`

	// Kind echoes the kind of the request being answered. Zero when
	// the request could not be decoded.
	Kind Kind `cbor:"kind,omitempty"`

	// Path is the stored artifact's path relative to the server's
	// working directory (e.g. "files/a.txt"). Empty for text and quit.
	Path string `cbor:"path,omitempty"`

	// Size is the number of bytes stored.
	Size int64 `cbor:"size,omitempty"`

	// Digest is the hex BLAKE3-256 digest of the stored bytes.
	Digest string `cbor:"digest,omitempty"`

	// Format, Width, and Height describe the source image for image
	// requests. Format is the sniffed format, not the declared one.
	Format string `cbor:"format,omitempty"`
	Width  int    `cbor:"width,omitempty"`
	Height int    `cbor:"height,omitempty"`

	// Detail is a short human-readable note (e.g. "received 5 bytes"
	// for text, or a format-hint mismatch for images).
	Detail string `cbor:"detail,omitempty"`
}

// ResponseError is a failed Response as a Go error.
type ResponseError struct {
	Code    ErrorCode
	Message string
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Err returns nil for a successful response and a *ResponseError
// otherwise.
func (r Response) Err() error {
	if r.OK {
		return nil
	}
	code := r.Code
	if code == "" {
		code = CodeInternal
	}
	return &ResponseError{Code: code, Message: r.Error}
}

// Failure builds a failed response for a request of the given kind.
func Failure(kind Kind, code ErrorCode, err error) Response {
	return Response{Kind: kind, Code: code, Error: err.Error()}
}

// EncodeResponse serializes a response.
func EncodeResponse(r Response) ([]byte, error) {
	return codec.Marshal(r)
}

// DecodeResponse parses exactly one response. Failures wrap
// ErrMalformedMessage.
func DecodeResponse(data []byte) (Response, error) {
	var response Response
	if err := codec.Unmarshal(data, &response); err != nil {
		return Response{}, malformed("response: %v", err)
	}
	return response, nil
}
