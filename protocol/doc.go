// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol defines the messages exchanged between the Courier
// client and server and their wire encoding.
//
// A client request is a [Message]: one of [Text], [File], [Image], or
// [Quit]. The server answers every request with exactly one
// [Response]. Each encoded value travels in its own transport frame.
//
// # Wire layout
//
// A message is a CBOR array whose first element is the [Kind]
// discriminator and whose second element is the variant body, itself
// a CBOR array of positional fields:
//
//	text:  [1, [body]]
//	file:  [2, [name, data, compression, size]]
//	image: [3, [name, data, compression, size, declared_format]]
//	quit:  [4, []]
//
// Strings are CBOR text strings and payloads are CBOR byte strings;
// both are length-prefixed, so payloads may contain zero bytes.
// compression is a [compress.Tag] and size is the uncompressed payload
// length, which must match the decoded payload exactly.
//
// [Decode] rejects anything that does not match one of these layouts
// (unknown kinds, wrong field counts or types, truncated input,
// trailing bytes, size mismatches, oversized declarations) with
// [ErrMalformedMessage]. Decode is the exact inverse of [Encode] for
// every valid message.
//
// A response is a CBOR map (see [Response]); failures carry an
// [ErrorCode] that [Response.Err] turns back into a [*ResponseError].
package protocol
