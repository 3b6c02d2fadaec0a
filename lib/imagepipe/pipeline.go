// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package imagepipe

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	// Decoders register themselves with the image package.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// CanonicalFormat is the format every stored image is converted to.
const CanonicalFormat = "png"

// CanonicalExtension is the file extension for CanonicalFormat.
const CanonicalExtension = ".png"

// DefaultMaxPixels bounds width*height when a Pipeline sets no limit.
// At 4 bytes per pixel this caps a decoded image at 256 MiB.
const DefaultMaxPixels = 64 * 1024 * 1024

var (
	// ErrUnsupportedFormat is returned when no registered decoder
	// recognises the bytes.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrCorruptImage is returned when the format is recognised but
	// the image cannot be decoded.
	ErrCorruptImage = errors.New("corrupt image")
)

// Result is a converted image.
type Result struct {
	// Data is the PNG encoding of the image.
	Data []byte

	// SourceFormat is the sniffed input format ("bmp", "jpeg", ...).
	SourceFormat string

	Width  int
	Height int

	// HintMismatch is set when a declared format was given and does
	// not match SourceFormat.
	HintMismatch bool
}

// Pipeline converts images to PNG. The zero value is ready to use. A
// Pipeline holds no mutable state and is safe for concurrent use.
type Pipeline struct {
	// MaxPixels bounds width*height of accepted images. Zero means
	// DefaultMaxPixels.
	MaxPixels int

	// Compression is the PNG compression level of the output.
	Compression png.CompressionLevel
}

// Convert decodes data, whatever its format, and re-encodes it as
// PNG. declaredFormat is the sender's claim about the format and may
// be empty.
func (p Pipeline) Convert(data []byte, declaredFormat string) (result Result, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			result = Result{}
			err = fmt.Errorf("%w: decoder panic: %v", ErrCorruptImage, recovered)
		}
	}()

	config, format, err := image.DecodeConfig(bytes.NewReader(data))
	if errors.Is(err, image.ErrFormat) {
		return Result{}, ErrUnsupportedFormat
	}
	if err != nil {
		return Result{}, fmt.Errorf("%w: reading %s header: %v", ErrCorruptImage, format, err)
	}

	maxPixels := p.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if config.Width <= 0 || config.Height <= 0 {
		return Result{}, fmt.Errorf("%w: %s has dimensions %dx%d", ErrCorruptImage, format, config.Width, config.Height)
	}
	if int64(config.Width)*int64(config.Height) > int64(maxPixels) {
		return Result{}, fmt.Errorf("%w: %s is %dx%d, more than %d pixels",
			ErrCorruptImage, format, config.Width, config.Height, maxPixels)
	}

	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("%w: decoding %s: %v", ErrCorruptImage, format, err)
	}

	var buffer bytes.Buffer
	encoder := png.Encoder{CompressionLevel: p.Compression}
	if err := encoder.Encode(&buffer, decoded); err != nil {
		return Result{}, fmt.Errorf("encoding png: %w", err)
	}

	bounds := decoded.Bounds()
	hint := NormalizeFormat(declaredFormat)
	return Result{
		Data:         buffer.Bytes(),
		SourceFormat: format,
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
		HintMismatch: hint != "" && hint != format,
	}, nil
}

// NormalizeFormat maps a declared format ("JPG", ".tif", "image/png")
// to the name the image package registers it under.
func NormalizeFormat(declared string) string {
	format := strings.ToLower(strings.TrimSpace(declared))
	format = strings.TrimPrefix(format, "image/")
	format = strings.TrimPrefix(format, ".")
	switch format {
	case "jpg", "jpe", "jfif":
		return "jpeg"
	case "tif":
		return "tiff"
	case "x-ms-bmp", "x-bmp", "dib":
		return "bmp"
	}
	return format
}

// SupportedFormats lists the input formats Convert recognises.
func SupportedFormats() []string {
	return []string{"bmp", "gif", "jpeg", "png", "tiff", "webp"}
}
