// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package imagepipe converts received images to the canonical stored
// format (PNG).
//
// The source format is sniffed from the bytes, never trusted from the
// sender: the declared format is a hint, and a disagreement is
// reported in [Result.HintMismatch] rather than treated as an error.
// PNG, JPEG, GIF, BMP, TIFF, and WebP inputs are recognised.
//
// Decoding runs in two steps. The header is read first with
// [image.DecodeConfig] so that images whose pixel count exceeds
// [Pipeline.MaxPixels] are rejected before any pixel buffer is
// allocated. A decoder panic on hostile input is recovered and
// reported as [ErrCorruptImage].
package imagepipe
