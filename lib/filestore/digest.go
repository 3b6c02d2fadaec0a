// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package filestore

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Digest is a BLAKE3-256 digest of stored bytes.
type Digest [32]byte

// HashBytes returns the digest of data.
func HashBytes(data []byte) Digest {
	return Digest(blake3.Sum256(data))
}

// String returns the lowercase hex encoding of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether d is the zero digest.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// ParseDigest parses a 64-character hex string.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	if len(s) != hex.EncodedLen(len(d)) {
		return Digest{}, fmt.Errorf("digest must be %d hex characters, got %d", hex.EncodedLen(len(d)), len(s))
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return Digest{}, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	return d, nil
}
