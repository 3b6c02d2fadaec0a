// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Courier packages.
//
// [StoreDirs] lays out the files/ and images/ directories a server
// writes into under a per-test temporary root, removed when the test
// completes.
//
// [RequireReceive] and [RequireClosed] bound every channel wait in a
// test with a timer. A hung server or client then fails the test with
// a message instead of stalling the whole run.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation. Use it instead of time.Now() when tests need unique
// file names or message bodies.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no Courier-internal dependencies.
package testutil
