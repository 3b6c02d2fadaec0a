// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/courier/lib/compress"
	"github.com/bureau-foundation/courier/protocol"
	"github.com/bureau-foundation/courier/transport"
)

// DefaultTimeout bounds each request/response exchange when Options
// sets none.
const DefaultTimeout = 60 * time.Second

// ErrFileNotFound is returned when a .file or .image path does not
// exist.
var ErrFileNotFound = errors.New("file not found")

// ErrMissingPath is returned for a .file or .image command with no
// path.
var ErrMissingPath = errors.New("missing path")

// ErrMessageTooLarge is returned by Send when an encoded message does
// not fit in one frame. Nothing is written, so the session stays
// usable. It wraps transport.ErrFrameTooLarge.
var ErrMessageTooLarge = errors.New("message too large to send")

// Options configures a Session.
type Options struct {
	// Compression is applied to file and image payloads.
	// compress.Auto picks per payload.
	Compression compress.Tag

	// MaxFrameSize bounds frames in both directions. Zero means
	// transport.DefaultMaxFrameSize.
	MaxFrameSize int

	// Timeout bounds each exchange. Zero means DefaultTimeout.
	Timeout time.Duration

	// ReadFile loads the bytes for .file and .image commands. Nil
	// means os.ReadFile.
	ReadFile func(path string) ([]byte, error)

	// Logger receives debug logs. Nil discards.
	Logger *slog.Logger
}

// Session is one client connection. Send is safe to call from
// multiple goroutines; exchanges are serialized.
type Session struct {
	conn    *transport.Conn
	codec   protocol.Codec
	options Options
	logger  *slog.Logger

	mu sync.Mutex
}

// Dial connects to address and returns a Session.
func Dial(ctx context.Context, address string, options Options) (*Session, error) {
	dialer := &transport.TCPDialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", address, err)
	}
	return NewSession(conn, options), nil
}

// NewSession wraps an established connection.
func NewSession(conn net.Conn, options Options) *Session {
	if options.Timeout <= 0 {
		options.Timeout = DefaultTimeout
	}
	if options.ReadFile == nil {
		options.ReadFile = os.ReadFile
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		conn:    transport.NewConn(conn, options.MaxFrameSize),
		codec:   protocol.Codec{Compression: options.Compression},
		options: options,
		logger:  logger,
	}
}

// RemoteAddr returns the server address.
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// Close closes the connection.
func (s *Session) Close() error {
	return s.conn.Close()
}

// Send writes message and waits for the server's response. A failed
// request is reported through Response.OK and Response.Err, not the
// returned error; the returned error means the connection failed and
// the session is unusable. The exception is ErrMessageTooLarge, which
// is reported before anything is written.
func (s *Session) Send(ctx context.Context, message protocol.Message) (protocol.Response, error) {
	payload, err := s.codec.Encode(message)
	if err != nil {
		return protocol.Response{}, err
	}
	if limit := s.conn.FrameLimit(); len(payload) > limit {
		return protocol.Response{}, fmt.Errorf("%w: %s encodes to %d bytes (max %d): %w",
			ErrMessageTooLarge, message.Kind(), len(payload), limit, transport.ErrFrameTooLarge)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := time.Now().Add(s.options.Timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := s.conn.SetDeadline(deadline); err != nil {
		return protocol.Response{}, fmt.Errorf("setting deadline: %w", err)
	}
	defer s.conn.SetDeadline(time.Time{})

	// Cancellation unblocks the in-flight read or write.
	stop := context.AfterFunc(ctx, func() {
		s.conn.SetDeadline(time.Now())
	})
	defer stop()

	started := time.Now()
	if err := s.conn.WriteFrame(payload); err != nil {
		return protocol.Response{}, s.exchangeError(ctx, "sending "+message.Kind().String(), err)
	}
	frame, err := s.conn.ReadFrame()
	if err != nil {
		return protocol.Response{}, s.exchangeError(ctx, "waiting for response", err)
	}
	response, err := protocol.DecodeResponse(frame)
	if err != nil {
		return protocol.Response{}, err
	}

	s.logger.Debug("exchange complete",
		"kind", message.Kind(),
		"request_bytes", len(payload),
		"ok", response.OK,
		"duration", time.Since(started))
	return response, nil
}

func (s *Session) exchangeError(ctx context.Context, operation string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", operation, ctx.Err())
	}
	return fmt.Errorf("%s: %w", operation, err)
}

// BuildMessage turns a parsed command into a message, reading any
// referenced file. File and image names sent to the server are the
// base name of the local path.
func (s *Session) BuildMessage(command Command) (protocol.Message, error) {
	switch command.Kind {
	case CommandText:
		return protocol.Text{Body: command.Text}, nil
	case CommandQuit:
		return protocol.Quit{}, nil
	case CommandFile, CommandImage:
		if command.Path == "" {
			return nil, fmt.Errorf("%w: usage: .%s <path>", ErrMissingPath, command.Kind)
		}
		data, err := s.options.ReadFile(command.Path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, command.Path)
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", command.Path, err)
		}
		name := filepath.Base(command.Path)
		if command.Kind == CommandFile {
			return protocol.File{Name: name, Data: data}, nil
		}
		return protocol.Image{
			Name:           name,
			Data:           data,
			DeclaredFormat: strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")),
		}, nil
	default:
		return nil, fmt.Errorf("unknown command kind %d", command.Kind)
	}
}
