// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"strings"
)

// CommandKind identifies what a parsed input line asks for.
type CommandKind int

const (
	CommandText CommandKind = iota
	CommandFile
	CommandImage
	CommandQuit
)

func (k CommandKind) String() string {
	switch k {
	case CommandText:
		return "text"
	case CommandFile:
		return "file"
	case CommandImage:
		return "image"
	case CommandQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Command is one parsed input line.
type Command struct {
	Kind CommandKind

	// Text is the message body for CommandText.
	Text string

	// Path is the local path for CommandFile and CommandImage. Empty
	// when the user gave none.
	Path string
}

// ParseCommand interprets one input line. Directives are recognised
// after trimming surrounding whitespace; text is sent as typed, minus
// the line terminator.
func ParseCommand(line string) Command {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	trimmed := strings.TrimSpace(line)
	if path, ok := directive(trimmed, ".file"); ok {
		return Command{Kind: CommandFile, Path: path}
	}
	if path, ok := directive(trimmed, ".image"); ok {
		return Command{Kind: CommandImage, Path: path}
	}
	if trimmed == ".quit" {
		return Command{Kind: CommandQuit}
	}
	return Command{Kind: CommandText, Text: line}
}

// directive matches ".name" alone or followed by whitespace and an
// argument.
func directive(line, name string) (argument string, ok bool) {
	rest, found := strings.CutPrefix(line, name)
	if !found {
		return "", false
	}
	if rest == "" {
		return "", true
	}
	if rest[0] != ' ' && rest[0] != '\t' {
		return "", false
	}
	return strings.TrimSpace(rest), true
}
