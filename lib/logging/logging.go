// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the slog loggers used by the Courier
// commands. Library packages never construct loggers themselves; they
// accept a *slog.Logger from their caller.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// DebugEnvironmentVariable forces debug level when set to any
// non-empty value.
const DebugEnvironmentVariable = "COURIER_DEBUG"

// Format selects the log handler.
type Format string

const (
	// FormatAuto uses FormatText when the output is a terminal and
	// FormatJSON otherwise.
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options configures New.
type Options struct {
	// Level is debug, info, warn, or error. Empty means info.
	Level string

	// Format is auto, text, or json. Empty means auto.
	Format Format

	// Output receives log records. Nil means os.Stderr.
	Output io.Writer
}

// New creates a structured logger. When the output is a terminal,
// FormatAuto uses slog.TextHandler for human-readable output; when it
// is piped or redirected it uses slog.JSONHandler for
// machine-parseable output.
func New(options Options) (*slog.Logger, error) {
	level, err := ParseLevel(options.Level)
	if err != nil {
		return nil, err
	}
	if os.Getenv(DebugEnvironmentVariable) != "" {
		level = slog.LevelDebug
	}

	output := options.Output
	if output == nil {
		output = os.Stderr
	}

	format := options.Format
	if format == "" || format == FormatAuto {
		format = FormatJSON
		if isTerminal(output) {
			format = FormatText
		}
	}

	handlerOptions := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch format {
	case FormatText:
		handler = slog.NewTextHandler(output, handlerOptions)
	case FormatJSON:
		handler = slog.NewJSONHandler(output, handlerOptions)
	default:
		return nil, fmt.Errorf("unknown log format %q (want auto, text, or json)", format)
	}
	return slog.New(handler), nil
}

// ParseLevel parses a level name. Empty means info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (want debug, info, warn, or error)", name)
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
