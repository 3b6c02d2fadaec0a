// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/courier/lib/filestore"
	"github.com/bureau-foundation/courier/lib/imagepipe"
	"github.com/bureau-foundation/courier/protocol"
	"github.com/bureau-foundation/courier/transport"
)

// DefaultWriteTimeout bounds each response write when Options sets
// none.
const DefaultWriteTimeout = 30 * time.Second

// Accept backoff bounds for transient accept errors (EMFILE and
// friends).
const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Saver persists a named payload.
type Saver interface {
	Save(name string, data []byte) (filestore.Artifact, error)
	SaveWithExtension(name, ext string, data []byte) (filestore.Artifact, error)
}

// ImageConverter canonicalises image bytes.
type ImageConverter interface {
	Convert(data []byte, declaredFormat string) (imagepipe.Result, error)
}

// Options configures a Server.
type Options struct {
	// Address is the TCP address ListenAndServe binds
	// ("127.0.0.1:11111").
	Address string

	// Files stores file payloads verbatim. Required.
	Files Saver

	// Images stores canonicalised images. Required.
	Images Saver

	// Pipeline converts images before they are stored. Nil means
	// imagepipe.Pipeline{}.
	Pipeline ImageConverter

	// Codec decodes requests. The zero value accepts every
	// compression tag and the default payload limit.
	Codec protocol.Codec

	// MaxFrameSize bounds incoming frames. Zero means
	// transport.DefaultMaxFrameSize.
	MaxFrameSize int

	// ReadTimeout, when positive, closes connections that stay idle
	// (or stall mid-frame) for longer. Zero waits indefinitely, which
	// suits interactive clients.
	ReadTimeout time.Duration

	// WriteTimeout bounds each response write. Zero means
	// DefaultWriteTimeout.
	WriteTimeout time.Duration

	// Logger receives connection and request logs. Nil discards.
	Logger *slog.Logger
}

// Server accepts connections and dispatches their requests.
type Server struct {
	options  Options
	pipeline ImageConverter
	logger   *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once

	mu          sync.Mutex
	addr        net.Addr
	connections map[*connection]struct{}

	activeConnections sync.WaitGroup
}

// New validates options and returns a Server. It does not bind.
func New(options Options) (*Server, error) {
	if options.Files == nil {
		return nil, errors.New("server: Files store is required")
	}
	if options.Images == nil {
		return nil, errors.New("server: Images store is required")
	}
	if options.MaxFrameSize < 0 {
		return nil, fmt.Errorf("server: negative MaxFrameSize %d", options.MaxFrameSize)
	}
	if options.MaxFrameSize == 0 {
		options.MaxFrameSize = transport.DefaultMaxFrameSize
	}
	if options.WriteTimeout <= 0 {
		options.WriteTimeout = DefaultWriteTimeout
	}

	pipeline := options.Pipeline
	if pipeline == nil {
		pipeline = imagepipe.Pipeline{}
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Server{
		options:     options,
		pipeline:    pipeline,
		logger:      logger,
		ready:       make(chan struct{}),
		connections: make(map[*connection]struct{}),
	}, nil
}

// ListenAndServe binds Options.Address and serves until ctx is
// cancelled. A bind failure is returned as a *transport.BindError.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := transport.Listen(s.options.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is cancelled or the
// listener is closed. It takes ownership of listener. On return every
// connection has been closed and its handler has exited.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.mu.Lock()
	s.addr = listener.Addr()
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })

	defer listener.Close()

	stop := context.AfterFunc(ctx, func() {
		listener.Close()
	})
	defer stop()

	s.logger.Info("listening", "address", listener.Addr().String(),
		"max_frame_size", s.options.MaxFrameSize)

	backoff := time.Duration(0)
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			if backoff == 0 {
				backoff = minAcceptBackoff
			} else {
				backoff = min(2*backoff, maxAcceptBackoff)
			}
			s.logger.Error("accept failed", "error", err, "retry_in", backoff)
			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
			}
			break
		}
		backoff = 0

		c := s.track(conn)
		if c == nil {
			// Shutdown started between Accept and track.
			conn.Close()
			continue
		}
		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			defer s.untrack(c)
			c.serve(ctx)
		}()
	}

	s.closeConnections()
	s.activeConnections.Wait()
	s.logger.Info("server stopped")
	return nil
}

// Addr returns the bound address, or nil before Serve starts.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Ready is closed once Serve has a listener and Addr is valid.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// track registers a new connection. It returns nil once shutdown has
// begun.
func (s *Server) track(conn net.Conn) *connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connections == nil {
		return nil
	}

	transportConn := transport.NewConn(conn, s.options.MaxFrameSize)
	transportConn.ReadTimeout = s.options.ReadTimeout
	transportConn.WriteTimeout = s.options.WriteTimeout

	id := uuid.NewString()
	c := &connection{
		id:     id,
		conn:   transportConn,
		server: s,
		logger: s.logger.With("connection", id, "peer", conn.RemoteAddr().String()),
	}
	s.connections[c] = struct{}{}
	return c
}

func (s *Server) untrack(c *connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connections != nil {
		delete(s.connections, c)
	}
}

// closeConnections closes every live connection and refuses new ones.
// Blocked reads return immediately and the handlers exit.
func (s *Server) closeConnections() {
	s.mu.Lock()
	connections := s.connections
	s.connections = nil
	s.mu.Unlock()

	for c := range connections {
		c.conn.Close()
	}
}
