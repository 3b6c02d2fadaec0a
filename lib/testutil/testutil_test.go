// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStoreDirs(t *testing.T) {
	files, images := StoreDirs(t)
	if filepath.Base(files) != "files" || filepath.Base(images) != "images" {
		t.Errorf("StoreDirs() = %q, %q", files, images)
	}
	if filepath.Dir(files) != filepath.Dir(images) {
		t.Errorf("directories do not share a root: %q, %q", files, images)
	}
	for _, directory := range []string{files, images} {
		if info, err := os.Stat(directory); err != nil || !info.IsDir() {
			t.Errorf("%s is not a directory: %v", directory, err)
		}
	}
}

func TestUniqueID(t *testing.T) {
	first, second := UniqueID("x"), UniqueID("x")
	if first == second {
		t.Errorf("UniqueID returned %q twice", first)
	}
	if !strings.HasPrefix(first, "x-") {
		t.Errorf("UniqueID(\"x\") = %q", first)
	}
}

func TestRequireReceive(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 42
	if got := RequireReceive(t, ch, time.Second, "receiving"); got != 42 {
		t.Errorf("RequireReceive = %d, want 42", got)
	}

	done := make(chan struct{})
	close(done)
	RequireClosed(t, done, time.Second, "closed channel")
}

// fatalRecorder captures Fatalf instead of stopping the test.
type fatalRecorder struct {
	message string
}

func (r *fatalRecorder) Helper() {}

func (r *fatalRecorder) Fatalf(format string, args ...any) {
	r.message = format
	panic(r)
}

func TestRequireReceiveTimesOut(t *testing.T) {
	recorder := &fatalRecorder{}
	func() {
		defer func() {
			if recovered := recover(); recovered != recorder {
				t.Fatalf("unexpected panic: %v", recovered)
			}
		}()
		RequireReceive(recorder, make(chan int), 10*time.Millisecond, "waiting for %s", "nothing")
	}()
	if !strings.HasPrefix(recorder.message, "timed out") {
		t.Errorf("Fatalf format = %q", recorder.message)
	}
}

func TestRequireReceiveClosedChannel(t *testing.T) {
	recorder := &fatalRecorder{}
	ch := make(chan int)
	close(ch)
	func() {
		defer func() {
			if recovered := recover(); recovered != recorder {
				t.Fatalf("unexpected panic: %v", recovered)
			}
		}()
		RequireReceive(recorder, ch, time.Second)
	}()
	if !strings.HasPrefix(recorder.message, "channel closed") {
		t.Errorf("Fatalf format = %q", recorder.message)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		args []any
		want string
	}{
		{nil, "(no message)"},
		{[]any{"plain"}, "plain"},
		{[]any{7}, "7"},
		{[]any{"%s-%d", "a", 1}, "a-1"},
	}
	for _, test := range tests {
		if got := describe(test.args); got != test.want {
			t.Errorf("describe(%v) = %q, want %q", test.args, got, test.want)
		}
	}
}
