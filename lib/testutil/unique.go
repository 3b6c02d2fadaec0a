// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"strconv"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns prefix followed by a process-wide sequence number,
// for file names and message bodies that must differ between clients.
//
//	name := testutil.UniqueID("upload") + ".txt" // "upload-1.txt"
func UniqueID(prefix string) string {
	return prefix + "-" + strconv.FormatUint(uniqueCounter.Add(1), 10)
}
