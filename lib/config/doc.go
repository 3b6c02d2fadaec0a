// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the Courier
// server and client.
//
// Configuration comes from at most one file, named by the --config
// flag or the COURIER_CONFIG environment variable (see [Resolve]).
// Files ending in .json or .jsonc are parsed as JSON with comments and
// trailing commas; anything else is parsed as YAML. Values absent from
// the file keep their [Default]. With no file at all, the defaults
// apply unchanged: the server listens on 127.0.0.1:11111 and writes
// into ./files and ./images.
//
// Variable expansion is performed on directory fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded. Command-line
// flags override file values; the commands apply them after loading.
//
// Key exports:
//
//   - [Config] -- master struct with Server, Client, and Logging
//   - [Default] -- returns a Config with the built-in defaults
//   - [Load], [LoadFile], and [Resolve] -- the entry points for loading
//
// This package depends on no other Courier packages.
package config
