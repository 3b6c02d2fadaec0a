// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package compress

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Tag identifies the compression algorithm applied to a payload.
// Tags are protocol constants: changing them breaks wire
// compatibility.
type Tag uint8

const (
	// None indicates uncompressed bytes.
	None Tag = 0

	// LZ4 indicates LZ4 block compression.
	LZ4 Tag = 1

	// Zstd indicates zstd compression at the default level.
	Zstd Tag = 2

	// Auto asks [CompressAuto] to choose an algorithm. It is a
	// configuration value only and never appears on the wire.
	Auto Tag = 0xFF
)

// MaxDecompressedSize bounds the output of a single decompression.
// Declared sizes are checked against the caller's own limit first;
// this is the ceiling for the zstd decoder's window allocation.
const MaxDecompressedSize = 256 * 1024 * 1024

// ErrIncompressible is returned by [Compress] when the compressed
// output would not be smaller than the input.
var ErrIncompressible = errors.New("data is incompressible")

// ErrSizeMismatch is returned by [Decompress] when the decompressed
// output does not match the declared size.
var ErrSizeMismatch = errors.New("decompressed size mismatch")

// String returns the human-readable name of a tag.
func (tag Tag) String() string {
	switch tag {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	case Auto:
		return "auto"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// Valid reports whether tag may appear on the wire.
func (tag Tag) Valid() bool {
	return tag == None || tag == LZ4 || tag == Zstd
}

// ParseTag parses a tag from its string representation. "auto" is
// accepted for configuration.
func ParseTag(name string) (Tag, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "none", "":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	case "auto":
		return Auto, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (want none, lz4, zstd, or auto)", name)
	}
}

// zstdEncoder and zstdDecoder are reused across calls; both are safe
// for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil,
		zstd.WithDecoderMaxMemory(MaxDecompressedSize),
	)
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}

// Compress compresses data with the given algorithm. For [None] it
// returns data unchanged. Returns [ErrIncompressible] when the output
// would not be smaller than the input.
func Compress(data []byte, tag Tag) ([]byte, error) {
	switch tag {
	case None:
		return data, nil
	case LZ4:
		return compressLZ4(data)
	case Zstd:
		return compressZstd(data)
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

// CompressAuto compresses data with tag, or with the algorithm chosen
// by [Select] when tag is [Auto]. Incompressible data falls back to
// [None]. Returns the encoded bytes and the tag actually used.
func CompressAuto(data []byte, tag Tag, name string) ([]byte, Tag, error) {
	if tag == Auto {
		tag = Select(name, data)
	}
	if len(data) == 0 {
		return data, None, nil
	}

	compressed, err := Compress(data, tag)
	if err != nil {
		if errors.Is(err, ErrIncompressible) {
			return data, None, nil
		}
		return nil, 0, err
	}
	return compressed, tag, nil
}

// Decompress restores data compressed with tag. The output must be
// exactly size bytes.
func Decompress(compressed []byte, tag Tag, size int) ([]byte, error) {
	if size < 0 || size > MaxDecompressedSize {
		return nil, fmt.Errorf("declared size %d out of range", size)
	}
	switch tag {
	case None:
		if len(compressed) != size {
			return nil, fmt.Errorf("uncompressed payload is %d bytes, declared %d: %w",
				len(compressed), size, ErrSizeMismatch)
		}
		return compressed, nil
	case LZ4:
		return decompressLZ4(compressed, size)
	case Zstd:
		return decompressZstd(compressed, size)
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))

	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock returns 0 for incompressible input.
	if written == 0 || written >= len(data) {
		return nil, ErrIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(compressed []byte, size int) ([]byte, error) {
	destination := make([]byte, size)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != size {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, declared %d: %w", read, size, ErrSizeMismatch)
	}
	return destination, nil
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, ErrIncompressible
	}
	return compressed, nil
}

func decompressZstd(compressed []byte, size int) ([]byte, error) {
	result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(result) != size {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, declared %d: %w", len(result), size, ErrSizeMismatch)
	}
	return result, nil
}

// precompressedExtensions are formats whose bytes are already
// entropy-coded; compressing them again costs CPU for nothing.
var precompressedExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".zip": true, ".gz": true, ".tgz": true, ".zst": true, ".xz": true,
	".bz2": true, ".7z": true, ".mp3": true, ".mp4": true, ".pdf": true,
}

// Select picks an algorithm for a payload from its file name and up
// to the first 512 bytes of content. Already-compressed formats get
// [None], text-like content gets [Zstd], everything else [LZ4].
func Select(name string, sample []byte) Tag {
	if precompressedExtensions[strings.ToLower(filepath.Ext(name))] {
		return None
	}
	if len(sample) == 0 {
		return None
	}

	contentType := http.DetectContentType(sample)
	switch {
	case strings.HasPrefix(contentType, "text/"),
		strings.HasPrefix(contentType, "application/json"),
		strings.HasPrefix(contentType, "application/xml"):
		return Zstd
	case strings.HasPrefix(contentType, "image/png"),
		strings.HasPrefix(contentType, "image/jpeg"),
		strings.HasPrefix(contentType, "image/gif"),
		strings.HasPrefix(contentType, "image/webp"),
		strings.HasPrefix(contentType, "application/zip"),
		strings.HasPrefix(contentType, "application/x-gzip"),
		strings.HasPrefix(contentType, "application/pdf"):
		return None
	default:
		return LZ4
	}
}
