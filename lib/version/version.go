// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// These variables are set via -ldflags at build time.
var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty indicates whether there were uncommitted changes.
	GitDirty = "false"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"

	// Version is the semantic version. This is set manually for releases.
	Version = "0.1.0-dev"
)

// Info returns a formatted version string suitable for --version output.
func Info() string {
	commit, dirty, buildTime := stamp()
	dirtySuffix := ""
	if dirty {
		dirtySuffix = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, commit, dirtySuffix, buildTime)
}

// Full returns detailed version information including Go version.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version number.
func Short() string {
	return Version
}

// stamp returns the injected build stamp, falling back to the VCS
// settings the toolchain records in the binary.
func stamp() (commit string, dirty bool, buildTime string) {
	commit, dirty, buildTime = GitCommit, GitDirty == "true", BuildTime
	if commit != "unknown" {
		return commit, dirty, buildTime
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return commit, dirty, buildTime
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			commit = setting.Value
			if len(commit) > 7 {
				commit = commit[:7]
			}
		case "vcs.modified":
			dirty = setting.Value == "true"
		case "vcs.time":
			if buildTime == "unknown" {
				buildTime = setting.Value
			}
		}
	}
	return commit, dirty, buildTime
}

// Print writes the --version output for the named binary to stdout.
func Print(binary string) {
	fmt.Printf("%s %s\n", binary, Full())
}
