// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package filestore

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// publish renames tmpPath to finalPath, failing with an error that
// matches fs.ErrExist if finalPath already exists. Filesystems without
// RENAME_NOREPLACE support fall back to link+unlink.
func publish(tmpPath, finalPath string) error {
	err := unix.Renameat2(unix.AT_FDCWD, tmpPath, unix.AT_FDCWD, finalPath, unix.RENAME_NOREPLACE)
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.EOPNOTSUPP) {
		return linkPublish(tmpPath, finalPath)
	}
	return &os.LinkError{Op: "renameat2", Old: tmpPath, New: finalPath, Err: err}
}
