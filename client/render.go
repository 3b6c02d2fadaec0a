// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/bureau-foundation/courier/protocol"
)

// renderer formats session output. Styles degrade to plain text when
// the output is not a terminal.
type renderer struct {
	out         io.Writer
	interactive bool

	success lipgloss.Style
	failure lipgloss.Style
	warning lipgloss.Style
	detail  lipgloss.Style
	prompt  lipgloss.Style
}

func newRenderer(out io.Writer) *renderer {
	lipRenderer := lipgloss.NewRenderer(out)
	interactive := isTerminal(out)
	if !interactive {
		lipRenderer.SetColorProfile(termenv.Ascii)
	}

	return &renderer{
		out:         out,
		interactive: interactive,
		success:     lipRenderer.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		failure:     lipRenderer.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		warning:     lipRenderer.NewStyle().Foreground(lipgloss.Color("3")),
		detail:      lipRenderer.NewStyle().Faint(true),
		prompt:      lipRenderer.NewStyle().Foreground(lipgloss.Color("6")),
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

func (r *renderer) banner(address string) {
	fmt.Fprintf(r.out, "%s %s\n", r.success.Render("connected"), address)
	fmt.Fprintln(r.out, r.detail.Render("commands: .file <path>, .image <path>, .quit, or any text"))
}

// showPrompt writes the input prompt on interactive terminals only.
func (r *renderer) showPrompt() {
	if r.interactive {
		fmt.Fprint(r.out, r.prompt.Render("> "))
	}
}

func (r *renderer) response(response protocol.Response) {
	if !response.OK {
		fmt.Fprintf(r.out, "%s %v\n", r.failure.Render("error"), response.Err())
		return
	}

	var line string
	switch response.Kind {
	case protocol.KindText:
		line = "text delivered"
		if response.Detail != "" {
			line += " " + r.detail.Render("("+response.Detail+")")
		}
	case protocol.KindFile:
		line = fmt.Sprintf("file stored at %s %s", response.Path,
			r.detail.Render(fmt.Sprintf("(%d bytes, blake3 %s)", response.Size, shortDigest(response.Digest))))
	case protocol.KindImage:
		line = fmt.Sprintf("image stored at %s %s", response.Path,
			r.detail.Render(fmt.Sprintf("(%s %dx%d, %d bytes)", response.Format, response.Width, response.Height, response.Size)))
	case protocol.KindQuit:
		line = "server closed the session"
	default:
		line = fmt.Sprintf("%s acknowledged", response.Kind)
	}
	fmt.Fprintf(r.out, "%s %s\n", r.success.Render("ok"), line)

	if response.Kind == protocol.KindImage && response.Detail != "" {
		r.warn(response.Detail)
	}
}

func (r *renderer) localError(err error) {
	fmt.Fprintf(r.out, "%s %v\n", r.failure.Render("error"), err)
}

func (r *renderer) warn(message string) {
	fmt.Fprintf(r.out, "%s %s\n", r.warning.Render("warning"), message)
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
