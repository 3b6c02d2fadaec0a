// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// StoreDirs creates "files" and "images" directories under a fresh
// temporary root and returns their paths. The root is removed when the
// test completes.
func StoreDirs(t *testing.T) (files, images string) {
	t.Helper()
	root := t.TempDir()
	files = filepath.Join(root, "files")
	images = filepath.Join(root, "images")
	for _, directory := range []string{files, images} {
		if err := os.Mkdir(directory, 0o755); err != nil {
			t.Fatalf("creating %s: %v", directory, err)
		}
	}
	return files, images
}
