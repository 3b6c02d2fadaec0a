// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// Decoder limits. A Courier message is a two-level array with at most
// a handful of fields; responses are a flat map. These bounds are far
// above anything a valid peer sends and far below what would let a
// hostile frame burn CPU in the decoder.
const (
	maxNestedLevels  = 8
	maxArrayElements = 64
	maxMapPairs      = 64
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2).
var encMode cbor.EncMode

// decMode is the strict CBOR decoder used for all frames.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels:  maxNestedLevels,
		MaxArrayElements: maxArrayElements,
		MaxMapPairs:      maxMapPairs,
		IndefLength:      cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes exactly one CBOR data item from data into v.
// Trailing bytes after the item are an error.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Valid reports whether data is exactly one well-formed CBOR data item
// within the decoder limits.
func Valid(data []byte) error {
	return decMode.Wellformed(data)
}

// RawMessage is a raw encoded CBOR value. It implements
// cbor.Marshaler and cbor.Unmarshaler so it can be used to delay
// decoding of a variant body until its discriminator is known.
type RawMessage = cbor.RawMessage

// Diagnose returns the CBOR diagnostic notation (RFC 8949 §8) for the
// entire contents of data. The server uses this to log malformed
// frames at debug level.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
