// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the Courier
// binaries.
//
// Four package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit] -- short git SHA of the build
//   - [GitDirty] -- "true" if there were uncommitted changes
//   - [BuildTime] -- UTC timestamp of the build
//   - [Version] -- semantic version string (set manually for releases)
//
// When GitCommit is not injected (go install, go run, tests), the VCS
// stamp embedded by the Go toolchain is used if present.
//
//	go build -ldflags "-X github.com/bureau-foundation/courier/lib/version.GitCommit=$(git rev-parse --short HEAD)"
package version
