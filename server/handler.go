// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/bureau-foundation/courier/lib/codec"
	"github.com/bureau-foundation/courier/lib/imagepipe"
	"github.com/bureau-foundation/courier/protocol"
	"github.com/bureau-foundation/courier/transport"
)

// State is a connection handler's position in its request loop.
type State int32

const (
	StateReading State = iota
	StateDispatching
	StateResponding
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateReading:
		return "reading"
	case StateDispatching:
		return "dispatching"
	case StateResponding:
		return "responding"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// maxDiagnosedFrame bounds how much of a malformed frame is rendered
// in debug logs.
const maxDiagnosedFrame = 256

// maxLoggedBody bounds the text body preview in request logs.
const maxLoggedBody = 256

// connection is one accepted client.
type connection struct {
	id     string
	conn   *transport.Conn
	server *Server
	logger *slog.Logger

	state atomic.Int32
}

func (c *connection) setState(state State) {
	c.state.Store(int32(state))
}

// State returns the handler's current state.
func (c *connection) State() State {
	return State(c.state.Load())
}

// serve runs the request loop until the connection closes.
func (c *connection) serve(ctx context.Context) {
	started := time.Now()
	requests := 0
	c.logger.Info("connection opened")
	defer func() {
		c.setState(StateClosed)
		c.conn.Close()
		c.logger.Info("connection closed",
			"requests", requests,
			"duration", time.Since(started))
	}()

	for {
		c.setState(StateReading)
		frame, err := c.conn.ReadFrame()
		if err != nil {
			c.logReadError(ctx, err)
			return
		}

		c.setState(StateDispatching)
		requestStart := time.Now()
		response, quit := c.dispatch(frame)
		requests++

		c.setState(StateResponding)
		payload, err := protocol.EncodeResponse(response)
		if err != nil {
			c.logger.Error("encoding response failed", "error", err)
			return
		}
		if err := c.conn.WriteFrame(payload); err != nil {
			class, _ := classify(err)
			c.logger.Warn("writing response failed", "class", class, "error", err)
			return
		}
		c.logger.Debug("request complete",
			"kind", response.Kind,
			"ok", response.OK,
			"duration", time.Since(requestStart))

		if quit {
			return
		}
	}
}

func (c *connection) logReadError(ctx context.Context, err error) {
	switch {
	case ctx.Err() != nil:
		// Shutdown closed the connection.
	case errors.Is(err, transport.ErrConnectionClosed):
		c.logger.Debug("peer closed connection")
	case errors.Is(err, transport.ErrFrameTooLarge):
		c.logger.Warn("closing connection on oversized frame",
			"error", err, "max_frame_size", c.conn.MaxFrameSize)
	default:
		class, _ := classify(err)
		c.logger.Warn("read failed", "class", class, "error", err)
	}
}

// dispatch decodes and handles one request. quit reports whether the
// connection should close after the response is written.
func (c *connection) dispatch(frame []byte) (response protocol.Response, quit bool) {
	message, err := c.server.options.Codec.Decode(frame)
	if err != nil {
		c.logMalformed(frame, err)
		return c.failure(0, err), false
	}

	switch m := message.(type) {
	case protocol.Text:
		c.logger.Info("text message", "body", bodyPreview(m.Body), "bytes", len(m.Body))
		return protocol.Response{
			OK:     true,
			Kind:   protocol.KindText,
			Detail: fmt.Sprintf("received %d bytes", len(m.Body)),
		}, false

	case protocol.File:
		return c.handleFile(m), false

	case protocol.Image:
		return c.handleImage(m), false

	case protocol.Quit:
		c.logger.Info("client quit")
		return protocol.Response{OK: true, Kind: protocol.KindQuit}, true

	default:
		return c.failure(message.Kind(), fmt.Errorf("unhandled message type %T", message)), false
	}
}

func (c *connection) handleFile(m protocol.File) protocol.Response {
	artifact, err := c.server.options.Files.Save(m.Name, m.Data)
	if err != nil {
		return c.failure(protocol.KindFile, err, "name", m.Name)
	}

	c.logger.Info("stored file",
		"name", m.Name,
		"path", artifact.Path,
		"bytes", artifact.Size)
	return protocol.Response{
		OK:     true,
		Kind:   protocol.KindFile,
		Path:   artifact.Path,
		Size:   artifact.Size,
		Digest: artifact.Digest.String(),
	}
}

func (c *connection) handleImage(m protocol.Image) protocol.Response {
	result, err := c.server.pipeline.Convert(m.Data, m.DeclaredFormat)
	if err != nil {
		return c.failure(protocol.KindImage, err,
			"name", m.Name, "declared_format", m.DeclaredFormat, "bytes", len(m.Data))
	}

	artifact, err := c.server.options.Images.SaveWithExtension(m.Name, imagepipe.CanonicalExtension, result.Data)
	if err != nil {
		return c.failure(protocol.KindImage, err, "name", m.Name)
	}

	response := protocol.Response{
		OK:     true,
		Kind:   protocol.KindImage,
		Path:   artifact.Path,
		Size:   artifact.Size,
		Digest: artifact.Digest.String(),
		Format: result.SourceFormat,
		Width:  result.Width,
		Height: result.Height,
	}
	if result.HintMismatch {
		response.Detail = fmt.Sprintf("declared %s, content is %s",
			imagepipe.NormalizeFormat(m.DeclaredFormat), result.SourceFormat)
	}

	c.logger.Info("stored image",
		"name", m.Name,
		"path", artifact.Path,
		"source_format", result.SourceFormat,
		"width", result.Width,
		"height", result.Height,
		"bytes", artifact.Size,
		"hint_mismatch", result.HintMismatch)
	return response
}

// failure logs a per-request error and builds the response for it.
func (c *connection) failure(kind protocol.Kind, err error, attrs ...any) protocol.Response {
	class, code := classify(err)
	level := slog.LevelWarn
	if class == ClassInternal || code == protocol.CodeStorage {
		level = slog.LevelError
	}
	c.logger.Log(context.Background(), level, "request failed",
		append([]any{"kind", kind, "class", class, "code", code, "error", err}, attrs...)...)
	return protocol.Failure(kind, code, err)
}

// logMalformed renders the start of an undecodable frame at debug
// level: CBOR diagnostic notation when the sample is well formed, hex
// otherwise.
func (c *connection) logMalformed(frame []byte, err error) {
	if !c.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	sample := frame
	if len(sample) > maxDiagnosedFrame {
		sample = sample[:maxDiagnosedFrame]
	}
	diagnosis := fmt.Sprintf("%x", sample)
	if codec.Valid(sample) == nil {
		if notation, diagErr := codec.Diagnose(sample); diagErr == nil {
			diagnosis = notation
		}
	}
	c.logger.Debug("malformed frame", "bytes", len(frame), "diagnosis", diagnosis, "error", err)
}

// bodyPreview truncates body to maxLoggedBody bytes without splitting
// a UTF-8 sequence.
func bodyPreview(body string) string {
	if len(body) <= maxLoggedBody {
		return body
	}
	cut := maxLoggedBody
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + "..."
}
