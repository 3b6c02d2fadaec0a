// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/courier/lib/codec"
	"github.com/bureau-foundation/courier/lib/compress"
)

// DefaultMaxPayload bounds the declared uncompressed size of a file or
// image payload when a Codec sets no limit (64 MiB). Compressed
// payloads may expand past the frame limit, so the declared size is
// checked separately before anything is decompressed.
const DefaultMaxPayload = 64 * 1024 * 1024

// ErrMalformedMessage is returned by Decode when the bytes do not
// match the layout of any message variant.
var ErrMalformedMessage = errors.New("malformed message")

// envelope is the outer [kind, body] array. The body stays raw until
// the kind selects its layout.
type envelope struct {
	_    struct{} `cbor:",toarray"`
	Kind Kind
	Body codec.RawMessage
}

type textBody struct {
	_    struct{} `cbor:",toarray"`
	Body string
}

type fileBody struct {
	_           struct{} `cbor:",toarray"`
	Name        string
	Data        []byte
	Compression compress.Tag
	Size        uint64
}

type imageBody struct {
	_           struct{} `cbor:",toarray"`
	Name        string
	Data        []byte
	Compression compress.Tag
	Size        uint64
	Format      string
}

type quitBody struct {
	_ struct{} `cbor:",toarray"`
}

// Codec encodes and decodes messages with a particular payload
// compression policy and size limit. The zero value sends payloads
// uncompressed and accepts payloads up to DefaultMaxPayload.
type Codec struct {
	// Compression is applied to file and image payloads on encode.
	// compress.Auto picks per payload. Decode accepts every tag
	// regardless of this setting.
	Compression compress.Tag

	// MaxPayload bounds the declared uncompressed payload size on
	// decode. Zero means DefaultMaxPayload.
	MaxPayload int
}

var defaultCodec Codec

// Encode serializes m with the default codec.
func Encode(m Message) ([]byte, error) {
	return defaultCodec.Encode(m)
}

// Decode parses one message with the default codec.
func Decode(data []byte) (Message, error) {
	return defaultCodec.Decode(data)
}

// Encode serializes m. Pointer and value variants encode identically.
func (c Codec) Encode(m Message) ([]byte, error) {
	var body any
	switch v := deref(m).(type) {
	case Text:
		body = textBody{Body: v.Body}
	case File:
		data, tag, err := compress.CompressAuto(v.Data, c.Compression, v.Name)
		if err != nil {
			return nil, fmt.Errorf("compressing file payload: %w", err)
		}
		body = fileBody{Name: v.Name, Data: data, Compression: tag, Size: uint64(len(v.Data))}
	case Image:
		data, tag, err := compress.CompressAuto(v.Data, c.Compression, v.Name)
		if err != nil {
			return nil, fmt.Errorf("compressing image payload: %w", err)
		}
		body = imageBody{
			Name:        v.Name,
			Data:        data,
			Compression: tag,
			Size:        uint64(len(v.Data)),
			Format:      v.DeclaredFormat,
		}
	case Quit:
		body = quitBody{}
	default:
		return nil, fmt.Errorf("encode: unsupported message type %T", m)
	}

	raw, err := codec.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s body: %w", m.Kind(), err)
	}
	data, err := codec.Marshal(envelope{Kind: m.Kind(), Body: raw})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", m.Kind(), err)
	}
	return data, nil
}

// Decode parses exactly one message from data. Every failure wraps
// ErrMalformedMessage.
func (c Codec) Decode(data []byte) (Message, error) {
	var outer envelope
	if err := codec.Unmarshal(data, &outer); err != nil {
		return nil, malformed("envelope: %v", err)
	}

	switch outer.Kind {
	case KindText:
		var body textBody
		if err := codec.Unmarshal(outer.Body, &body); err != nil {
			return nil, malformed("text body: %v", err)
		}
		return Text{Body: body.Body}, nil

	case KindFile:
		var body fileBody
		if err := codec.Unmarshal(outer.Body, &body); err != nil {
			return nil, malformed("file body: %v", err)
		}
		payload, err := c.restore(body.Data, body.Compression, body.Size)
		if err != nil {
			return nil, err
		}
		return File{Name: body.Name, Data: payload}, nil

	case KindImage:
		var body imageBody
		if err := codec.Unmarshal(outer.Body, &body); err != nil {
			return nil, malformed("image body: %v", err)
		}
		payload, err := c.restore(body.Data, body.Compression, body.Size)
		if err != nil {
			return nil, err
		}
		return Image{Name: body.Name, Data: payload, DeclaredFormat: body.Format}, nil

	case KindQuit:
		var body quitBody
		if err := codec.Unmarshal(outer.Body, &body); err != nil {
			return nil, malformed("quit body: %v", err)
		}
		return Quit{}, nil

	default:
		return nil, malformed("unknown message kind %d", uint8(outer.Kind))
	}
}

// restore validates the declared size and undoes payload compression.
func (c Codec) restore(data []byte, tag compress.Tag, size uint64) ([]byte, error) {
	limit := c.MaxPayload
	if limit <= 0 {
		limit = DefaultMaxPayload
	}
	if size > uint64(limit) {
		return nil, malformed("declared payload size %d exceeds limit %d", size, limit)
	}
	if !tag.Valid() {
		return nil, malformed("unknown compression tag %d", uint8(tag))
	}
	payload, err := compress.Decompress(data, tag, int(size))
	if err != nil {
		return nil, malformed("payload: %v", err)
	}
	return payload, nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedMessage, fmt.Sprintf(format, args...))
}
