// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// courier-server accepts Courier connections and stores what clients
// send: files verbatim under the files directory, images converted to
// PNG under the images directory.
//
// The server runs until interrupted (SIGINT or SIGTERM), then closes
// every connection and exits. It exits non-zero if it cannot bind.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/courier/lib/config"
	"github.com/bureau-foundation/courier/lib/filestore"
	"github.com/bureau-foundation/courier/lib/imagepipe"
	"github.com/bureau-foundation/courier/lib/logging"
	"github.com/bureau-foundation/courier/lib/version"
	"github.com/bureau-foundation/courier/server"
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
	var configPath string
	var host, filesDir, imagesDir, logLevel, logFormat string
	var port, maxFrameSize, maxImagePixels int
	var readTimeout, writeTimeout time.Duration
	inv := &invocation{}

	flagSet := pflag.NewFlagSet("courier-server", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML or JSONC config file (default: $COURIER_CONFIG)")
	flagSet.StringVar(&host, "host", "", "address to listen on (default 127.0.0.1)")
	flagSet.IntVar(&port, "port", 0, "TCP port to listen on (default 11111)")
	flagSet.StringVar(&filesDir, "files-dir", "", "directory for received files (default files)")
	flagSet.StringVar(&imagesDir, "images-dir", "", "directory for converted images (default images)")
	flagSet.IntVar(&maxFrameSize, "max-frame-size", 0, "largest accepted frame in bytes (default 10 MiB)")
	flagSet.IntVar(&maxImagePixels, "max-image-pixels", 0, "largest accepted image in pixels")
	flagSet.DurationVar(&readTimeout, "read-timeout", 0, "close connections idle this long (0 disables)")
	flagSet.DurationVar(&writeTimeout, "write-timeout", 0, "deadline for each response write (default 30s)")
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
		cfg.Server.Host = positional[0]
	}
	if len(positional) == 2 {
		cfg.Server.Port, err = strconv.Atoi(positional[1])
		if err != nil {
			return nil, fmt.Errorf("invalid port %q", positional[1])
		}
	}

	if flagSet.Changed("host") {
		cfg.Server.Host = host
	}
	if flagSet.Changed("port") {
		cfg.Server.Port = port
	}
	if flagSet.Changed("files-dir") {
		cfg.Server.FilesDir = filesDir
	}
	if flagSet.Changed("images-dir") {
		cfg.Server.ImagesDir = imagesDir
	}
	if flagSet.Changed("max-frame-size") {
		cfg.Server.MaxFrameSize = maxFrameSize
	}
	if flagSet.Changed("max-image-pixels") {
		cfg.Server.MaxImagePixels = maxImagePixels
	}
	if flagSet.Changed("read-timeout") {
		cfg.Server.ReadTimeout = readTimeout
	}
	if flagSet.Changed("write-timeout") {
		cfg.Server.WriteTimeout = writeTimeout
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
		version.Print("courier-server")
		return nil
	}
	if inv.showHelp {
		printHelp(os.Stderr, inv.flagSet)
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

	files, err := filestore.New(cfg.Server.FilesDir)
	if err != nil {
		return err
	}
	images, err := filestore.New(cfg.Server.ImagesDir)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Options{
		Address:      cfg.ServerAddress(),
		Files:        files,
		Images:       images,
		Pipeline:     imagepipe.Pipeline{MaxPixels: cfg.Server.MaxImagePixels},
		MaxFrameSize: cfg.Server.MaxFrameSize,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("courier-server starting",
		"version", version.Info(),
		"files_dir", cfg.Server.FilesDir,
		"images_dir", cfg.Server.ImagesDir)
	return srv.ListenAndServe(ctx)
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `courier-server: receive text, files, and images over TCP.

Files are stored verbatim under the files directory and images are
converted to PNG under the images directory. Names that are already
taken get a numeric suffix (report.txt, report-1.txt, ...).

Usage:
  courier-server [flags] [host] [port]

Examples:
  # Listen on the default 127.0.0.1:11111
  courier-server

  # Listen on all interfaces, port 9000
  courier-server 0.0.0.0 9000

  # Use a config file and store under /srv/courier
  courier-server --config courier.yaml --files-dir /srv/courier/files

Image formats:
  %s (stored as %s)

Environment:
  COURIER_CONFIG   config file used when --config is not given
  COURIER_DEBUG    enable debug logging

Flags:
`, strings.Join(imagepipe.SupportedFormats(), ", "), imagepipe.CanonicalFormat)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
