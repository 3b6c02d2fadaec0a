// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package filestore

func publish(tmpPath, finalPath string) error {
	return linkPublish(tmpPath, finalPath)
}
