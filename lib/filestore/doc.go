// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package filestore persists received payloads under a single
// directory without ever overwriting an existing file.
//
// A [Store] validates the requested name (one path element, no
// traversal, no NUL bytes), writes the bytes to a hidden temporary
// file in the target directory, fsyncs it, and publishes it under the
// requested name with a no-clobber rename. When the name is already
// taken the store disambiguates by appending a counter to the stem
// ("report.txt", "report-1.txt", "report-2.txt", ...), so repeated
// saves of the same name never lose data.
//
// On Linux publication uses renameat2(RENAME_NOREPLACE). Elsewhere,
// and on filesystems that do not support the flag, it falls back to
// link(2) followed by unlink of the temporary file. Both are atomic
// with respect to concurrent writers: two goroutines (or processes)
// saving the same name always end up with two distinct files.
//
// Every stored artifact carries its BLAKE3-256 digest so the sender
// can confirm the bytes arrived intact.
package filestore
