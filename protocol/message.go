// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"bytes"
	"fmt"
)

// Kind discriminates the message variants on the wire. Values are
// protocol constants.
type Kind uint8

const (
	KindText  Kind = 1
	KindFile  Kind = 2
	KindImage Kind = 3
	KindQuit  Kind = 4
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindFile:
		return "file"
	case KindImage:
		return "image"
	case KindQuit:
		return "quit"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Message is a client request. The set of implementations is closed:
// *Text, *File, *Image, and *Quit (or their values). Dispatch with a
// type switch.
type Message interface {
	Kind() Kind
	isMessage()
}

// Text is a plain text message. The server acknowledges it without
// persisting anything.
type Text struct {
	Body string
}

// File carries a file's bytes to be stored verbatim under Name.
type File struct {
	Name string
	Data []byte
}

// Image carries image bytes to be re-encoded to the canonical format
// and stored. DeclaredFormat is the sender's hint (usually the file
// extension); the server sniffs the real format from the bytes.
type Image struct {
	Name           string
	Data           []byte
	DeclaredFormat string
}

// Quit asks the server to acknowledge and close the connection.
type Quit struct{}

func (Text) Kind() Kind  { return KindText }
func (File) Kind() Kind  { return KindFile }
func (Image) Kind() Kind { return KindImage }
func (Quit) Kind() Kind  { return KindQuit }

func (Text) isMessage()  {}
func (File) isMessage()  {}
func (Image) isMessage() {}
func (Quit) isMessage()  {}

// Equal reports whether two messages have the same variant and field
// values. Nil and empty payloads compare equal.
func Equal(a, b Message) bool {
	a, b = deref(a), deref(b)
	switch x := a.(type) {
	case Text:
		y, ok := b.(Text)
		return ok && x.Body == y.Body
	case File:
		y, ok := b.(File)
		return ok && x.Name == y.Name && bytes.Equal(x.Data, y.Data)
	case Image:
		y, ok := b.(Image)
		return ok && x.Name == y.Name && x.DeclaredFormat == y.DeclaredFormat &&
			bytes.Equal(x.Data, y.Data)
	case Quit:
		_, ok := b.(Quit)
		return ok
	default:
		return false
	}
}

// deref converts pointer variants to values so callers may pass
// either form.
func deref(m Message) Message {
	switch v := m.(type) {
	case *Text:
		if v != nil {
			return *v
		}
	case *File:
		if v != nil {
			return *v
		}
	case *Image:
		if v != nil {
			return *v
		}
	case *Quit:
		if v != nil {
			return *v
		}
	default:
		return m
	}
	return nil
}
