// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/courier/lib/config"
	"github.com/bureau-foundation/courier/lib/imagepipe"
	"github.com/bureau-foundation/courier/transport"
)

func TestParseArgsDefaults(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	inv, err := parseArgs(nil)
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if inv.cfg.ServerAddress() != "127.0.0.1:11111" {
		t.Errorf("address = %s", inv.cfg.ServerAddress())
	}
	if inv.cfg.Server.FilesDir != "files" || inv.cfg.Server.ImagesDir != "images" {
		t.Errorf("dirs = %s, %s", inv.cfg.Server.FilesDir, inv.cfg.Server.ImagesDir)
	}
}

func TestParseArgsOverrides(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	inv, err := parseArgs([]string{
		"--files-dir", "/srv/in",
		"--images-dir", "/srv/img",
		"--max-frame-size", "2048",
		"--read-timeout", "2m",
		"--log-level", "debug",
		"0.0.0.0", "9000",
	})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	cfg := inv.cfg
	if cfg.ServerAddress() != "0.0.0.0:9000" {
		t.Errorf("address = %s", cfg.ServerAddress())
	}
	if cfg.Server.FilesDir != "/srv/in" || cfg.Server.ImagesDir != "/srv/img" {
		t.Errorf("dirs = %s, %s", cfg.Server.FilesDir, cfg.Server.ImagesDir)
	}
	if cfg.Server.MaxFrameSize != 2048 || cfg.Server.ReadTimeout != 2*time.Minute {
		t.Errorf("server config = %+v", cfg.Server)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %s", cfg.Logging.Level)
	}
}

func TestParseArgsConfigFromEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courier.jsonc")
	if err := os.WriteFile(path, []byte(`{"server": {"port": 12345}, // trailing comment
}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.EnvironmentVariable, path)

	inv, err := parseArgs(nil)
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if inv.cfg.Server.Port != 12345 {
		t.Errorf("port = %d", inv.cfg.Server.Port)
	}
}

func TestParseArgsErrors(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	for _, args := range [][]string{
		{"host", "port"},
		{"a", "1", "extra"},
		{"--max-frame-size", "0"},
		{"--files-dir", "same", "--images-dir", "same"},
		{"--log-format", "xml"},
		{"--config", "/nonexistent/courier.yaml"},
	} {
		if _, err := parseArgs(args); err == nil {
			t.Errorf("parseArgs(%q) succeeded, want error", args)
		}
	}
}

func TestRunBindFailure(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer occupied.Close()
	_, port, _ := net.SplitHostPort(occupied.Addr().String())

	dir := t.TempDir()
	err = run([]string{
		"--files-dir", filepath.Join(dir, "files"),
		"--images-dir", filepath.Join(dir, "images"),
		"--log-level", "error",
		"127.0.0.1", port,
	})
	var bindErr *transport.BindError
	if !errors.As(err, &bindErr) {
		t.Fatalf("run = %v, want *transport.BindError", err)
	}
}

func TestPrintHelpListsImageFormats(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	inv, err := parseArgs([]string{"--help"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}

	var output bytes.Buffer
	printHelp(&output, inv.flagSet)
	help := output.String()
	for _, format := range imagepipe.SupportedFormats() {
		if !strings.Contains(help, format) {
			t.Errorf("help does not mention image format %q", format)
		}
	}
	if !strings.Contains(help, "--files-dir") {
		t.Errorf("help does not list flags:\n%s", help)
	}
}
