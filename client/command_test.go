// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"hello\n", Command{Kind: CommandText, Text: "hello"}},
		{"hello\r\n", Command{Kind: CommandText, Text: "hello"}},
		{"  spaced out  \n", Command{Kind: CommandText, Text: "  spaced out  "}},
		{"\n", Command{Kind: CommandText, Text: ""}},
		{".file a.txt\n", Command{Kind: CommandFile, Path: "a.txt"}},
		{"  .file   dir/with space.txt  \n", Command{Kind: CommandFile, Path: "dir/with space.txt"}},
		{".file\n", Command{Kind: CommandFile}},
		{".image pic.bmp", Command{Kind: CommandImage, Path: "pic.bmp"}},
		{".image\tpic.bmp\n", Command{Kind: CommandImage, Path: "pic.bmp"}},
		{".quit\n", Command{Kind: CommandQuit}},
		{" .quit \n", Command{Kind: CommandQuit}},
		{".quitter\n", Command{Kind: CommandText, Text: ".quitter"}},
		{".filename\n", Command{Kind: CommandText, Text: ".filename"}},
		{".images x\n", Command{Kind: CommandText, Text: ".images x"}},
		{"say .file x\n", Command{Kind: CommandText, Text: "say .file x"}},
	}
	for _, test := range tests {
		if got := ParseCommand(test.line); got != test.want {
			t.Errorf("ParseCommand(%q) = %+v, want %+v", test.line, got, test.want)
		}
	}
}

func TestCommandKindString(t *testing.T) {
	if CommandImage.String() != "image" {
		t.Errorf("CommandImage.String() = %q", CommandImage.String())
	}
}
