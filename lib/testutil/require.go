// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// Fataler is the subset of testing.TB the Require helpers use.
type Fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value from ch, failing the test if
// none arrives within timeout or the channel is closed first.
//
//	err := testutil.RequireReceive(t, done, 5*time.Second, "server shutdown")
func RequireReceive[T any](t Fataler, ch <-chan T, timeout time.Duration, msgAndArgs ...any) T {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed before a value arrived: %s", describe(msgAndArgs))
		}
		return value
	case <-timer.C:
		t.Fatalf("timed out after %v: %s", timeout, describe(msgAndArgs))
	}
	panic("unreachable")
}

// RequireClosed waits for a signal channel such as Server.Ready to be
// closed.
func RequireClosed(t Fataler, ch <-chan struct{}, timeout time.Duration, msgAndArgs ...any) {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
		t.Fatalf("timed out after %v waiting for close: %s", timeout, describe(msgAndArgs))
	}
}

// describe renders the optional trailing arguments: nothing, a plain
// message, or a format string followed by its operands.
func describe(msgAndArgs []any) string {
	switch {
	case len(msgAndArgs) == 0:
		return "(no message)"
	case len(msgAndArgs) == 1:
		return fmt.Sprint(msgAndArgs[0])
	}
	if format, ok := msgAndArgs[0].(string); ok {
		return fmt.Sprintf(format, msgAndArgs[1:]...)
	}
	return fmt.Sprint(msgAndArgs...)
}
