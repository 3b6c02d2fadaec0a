// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// courier is the interactive Courier client. It connects to a
// courier-server and sends one message per input line:
//
//	.file <path>    send a file, stored verbatim
//	.image <path>   send an image, stored as PNG
//	.quit           end the session
//	anything else   send the line as text
//
// courier exits 0 after .quit or end of input and non-zero if it
// cannot connect or the connection fails.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/courier/client"
	"github.com/bureau-foundation/courier/lib/compress"
	"github.com/bureau-foundation/courier/lib/config"
	"github.com/bureau-foundation/courier/lib/logging"
	"github.com/bureau-foundation/courier/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// invocation is the parsed command line.
type invocation struct {
	cfg         *config.Config
	flagSet     *pflag.FlagSet
	showHelp    bool
	showVersion bool
}

func parseArgs(args []string) (*invocation, error) {
	var configPath, host, compression, logLevel, logFormat string
	var port, maxFrameSize int
	var timeout time.Duration
	inv := &invocation{}

	flagSet := pflag.NewFlagSet("courier", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML or JSONC config file (default: $COURIER_CONFIG)")
	flagSet.StringVar(&host, "host", "", "server host (default 127.0.0.1)")
	flagSet.IntVar(&port, "port", 0, "server port (default 11111)")
	flagSet.StringVar(&compression, "compression", "", "payload compression: none, lz4, zstd, or auto (default auto)")
	flagSet.IntVar(&maxFrameSize, "max-frame-size", 0, "largest frame in bytes (default 10 MiB)")
	flagSet.DurationVar(&timeout, "timeout", 0, "deadline for each request/response exchange (default 60s)")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn, or error")
	flagSet.StringVar(&logFormat, "log-format", "", "auto, text, or json")
	flagSet.BoolVar(&inv.showVersion, "version", false, "print version information and exit")
	flagSet.BoolVarP(&inv.showHelp, "help", "h", false, "show help")
	flagSet.SetOutput(io.Discard)
	inv.flagSet = flagSet

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			inv.showHelp = true
			return inv, nil
		}
		return nil, err
	}
	if inv.showHelp || inv.showVersion {
		return inv, nil
	}

	cfg, err := config.Resolve(configPath)
	if err != nil {
		return nil, err
	}

	positional := flagSet.Args()
	if len(positional) > 2 {
		return nil, fmt.Errorf("unexpected argument: %s", positional[2])
	}
	if len(positional) >= 1 {
		cfg.Client.Host = positional[0]
	}
	if len(positional) == 2 {
		cfg.Client.Port, err = strconv.Atoi(positional[1])
		if err != nil {
			return nil, fmt.Errorf("invalid port %q", positional[1])
		}
	}

	if flagSet.Changed("host") {
		cfg.Client.Host = host
	}
	if flagSet.Changed("port") {
		cfg.Client.Port = port
	}
	if flagSet.Changed("compression") {
		cfg.Client.Compression = compression
	}
	if flagSet.Changed("max-frame-size") {
		cfg.Client.MaxFrameSize = maxFrameSize
	}
	if flagSet.Changed("timeout") {
		cfg.Client.Timeout = timeout
	}
	if flagSet.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flagSet.Changed("log-format") {
		cfg.Logging.Format = logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	inv.cfg = cfg
	return inv, nil
}

func run(args []string) error {
	inv, err := parseArgs(args)
	if err != nil {
		return err
	}
	if inv.showVersion {
		version.Print("courier")
		return nil
	}
	if inv.showHelp {
		printHelp(inv.flagSet)
		return nil
	}
	cfg := inv.cfg

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: logging.Format(cfg.Logging.Format),
	})
	if err != nil {
		return err
	}
	compression, err := compress.ParseTag(cfg.Client.Compression)
	if err != nil {
		return err
	}

	ctx := context.Background()
	session, err := client.Dial(ctx, cfg.ClientAddress(), client.Options{
		Compression:  compression,
		MaxFrameSize: cfg.Client.MaxFrameSize,
		Timeout:      cfg.Client.Timeout,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	return session.Run(ctx, os.Stdin, os.Stdout)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `courier: send text, files, and images to a courier-server.

Each input line is one message:
  .file <path>    send a file, stored verbatim under files/
  .image <path>   send an image, stored as PNG under images/
  .quit           end the session
  anything else   send the line as text

Usage:
  courier [flags] [host] [port]

Examples:
  # Connect to the default 127.0.0.1:11111
  courier

  # Connect to a remote server
  courier files.example.net 9000

  # Send a batch of commands non-interactively
  printf '.file report.pdf\n.image scan.bmp\n' | courier

Environment:
  COURIER_CONFIG   config file used when --config is not given
  COURIER_DEBUG    enable debug logging

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
