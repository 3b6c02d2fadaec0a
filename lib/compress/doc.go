// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package compress implements the payload compression applied to file
// and image bytes inside a Courier message.
//
// Compression is a property of the wire encoding, not of the message:
// the protocol package compresses payload bytes on encode and restores
// them on decode, so callers always see the original bytes. Each
// compressed payload travels with its [Tag] and its uncompressed size,
// and [Decompress] refuses output that does not match the declared
// size exactly.
//
// Two algorithms are available: LZ4 block mode for fast generic
// binary data and zstd for text-like content. [Select] picks between
// them (or none, for formats that are already compressed) from the
// file name and a content sample.
package compress
