// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Courier's standard CBOR encoding configuration.
//
// Every frame on a Courier connection carries exactly one CBOR data
// item. This package holds the shared encoding and decoding modes so
// that the protocol, the server, and the client encode identically
// without duplicating configuration. The encoder uses Core
// Deterministic Encoding (RFC 8949 §4.2): sorted map keys, smallest
// integer encoding, no indefinite-length items. Same logical data
// always produces identical bytes.
//
// The decoder is strict. A frame is untrusted input from the network,
// so duplicate map keys are rejected, container sizes and nesting are
// bounded, and [Unmarshal] fails if any bytes follow the first data
// item. A frame holds one item and nothing else.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// # Struct Tag Rules
//
// Wire types use `cbor` tags. Positional layouts (the message
// envelope and its variant bodies) use the `toarray` struct option so
// that the discriminator is the first element on the wire.
package codec
