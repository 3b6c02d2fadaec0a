// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bureau-foundation/courier/lib/filestore"
	"github.com/bureau-foundation/courier/protocol"
)

// Run reads commands from input until .quit or end of input, sending
// each to the server and writing results to output. It returns nil
// after the server acknowledges the final quit, and an error if the
// connection fails or input cannot be read.
func (s *Session) Run(ctx context.Context, input io.Reader, output io.Writer) error {
	r := newRenderer(output)
	r.banner(s.RemoteAddr().String())

	reader := bufio.NewReader(input)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.showPrompt()
		line, readErr := reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("reading input: %w", readErr)
		}
		if readErr != nil && line == "" {
			return s.quit(ctx, r)
		}

		command := ParseCommand(line)
		if command.Kind == CommandQuit {
			return s.quit(ctx, r)
		}

		message, err := s.BuildMessage(command)
		if err != nil {
			r.localError(err)
		} else if err := s.exchange(ctx, r, message); err != nil {
			return err
		}

		if readErr != nil {
			// Last line had no terminator.
			return s.quit(ctx, r)
		}
	}
}

func (s *Session) exchange(ctx context.Context, r *renderer, message protocol.Message) error {
	response, err := s.Send(ctx, message)
	if errors.Is(err, ErrMessageTooLarge) {
		r.localError(err)
		return nil
	}
	if err != nil {
		return err
	}
	r.response(response)

	if file, ok := message.(protocol.File); ok && response.OK && response.Digest != "" {
		if sent := filestore.HashBytes(file.Data).String(); sent != response.Digest {
			r.warn(fmt.Sprintf("digest mismatch for %s: sent %s, server stored %s",
				file.Name, shortDigest(sent), shortDigest(response.Digest)))
		}
	}
	return nil
}

func (s *Session) quit(ctx context.Context, r *renderer) error {
	response, err := s.Send(ctx, protocol.Quit{})
	if err != nil {
		return err
	}
	r.response(response)
	return response.Err()
}
