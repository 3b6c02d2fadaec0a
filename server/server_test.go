// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/image/bmp"

	"github.com/bureau-foundation/courier/lib/compress"
	"github.com/bureau-foundation/courier/lib/filestore"
	"github.com/bureau-foundation/courier/lib/imagepipe"
	"github.com/bureau-foundation/courier/lib/testutil"
	"github.com/bureau-foundation/courier/protocol"
	"github.com/bureau-foundation/courier/transport"
)

const testTimeout = 5 * time.Second

type testServer struct {
	server    *Server
	address   string
	filesDir  string
	imagesDir string
	cancel    context.CancelFunc
	done      chan error
}

// startServer runs a Server on a loopback port. Options fields left
// zero get stores under t.TempDir().
func startServer(t *testing.T, options Options) *testServer {
	t.Helper()

	filesDir, imagesDir := testutil.StoreDirs(t)
	if options.Files == nil {
		files, err := filestore.New(filesDir)
		if err != nil {
			t.Fatalf("filestore.New: %v", err)
		}
		options.Files = files
	}
	if options.Images == nil {
		images, err := filestore.New(imagesDir)
		if err != nil {
			t.Fatalf("filestore.New: %v", err)
		}
		options.Images = images
	}

	server, err := New(options)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	listener, err := transport.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, listener)
	}()
	testutil.RequireClosed(t, server.Ready(), testTimeout, "server ready")

	ts := &testServer{
		server:    server,
		address:   server.Addr().String(),
		filesDir:  filesDir,
		imagesDir: imagesDir,
		cancel:    cancel,
		done:      done,
	}
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, done, testTimeout, "server shutdown"); err != nil {
			t.Errorf("Serve returned %v", err)
		}
	})
	return ts
}

func dial(t *testing.T, address string) *transport.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", address, testTimeout)
	if err != nil {
		t.Fatalf("dial %s: %v", address, err)
	}
	t.Cleanup(func() { conn.Close() })
	transportConn := transport.NewConn(conn, 0)
	transportConn.ReadTimeout = testTimeout
	transportConn.WriteTimeout = testTimeout
	return transportConn
}

func roundtrip(t *testing.T, conn *transport.Conn, message protocol.Message) protocol.Response {
	t.Helper()
	payload, err := protocol.Encode(message)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return roundtripRaw(t, conn, payload)
}

func roundtripRaw(t *testing.T, conn *transport.Conn, payload []byte) protocol.Response {
	t.Helper()
	if err := conn.WriteFrame(payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	frame, err := conn.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	response, err := protocol.DecodeResponse(frame)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	return response
}

func requireClosedByPeer(t *testing.T, conn *transport.Conn) {
	t.Helper()
	if frame, err := conn.ReadFrame(); !errors.Is(err, transport.ErrConnectionClosed) {
		t.Fatalf("ReadFrame after close = (%x, %v), want ErrConnectionClosed", frame, err)
	}
}

func testBMP(t *testing.T) ([]byte, *image.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for y := range 2 {
		for x := range 3 {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(80 * x), G: uint8(120 * y), B: 200, A: 0xFF})
		}
	}
	var buffer bytes.Buffer
	if err := bmp.Encode(&buffer, img); err != nil {
		t.Fatalf("bmp.Encode: %v", err)
	}
	return buffer.Bytes(), img
}

func TestEndToEndSession(t *testing.T) {
	ts := startServer(t, Options{})
	conn := dial(t, ts.address)

	// Text is acknowledged and not persisted.
	response := roundtrip(t, conn, protocol.Text{Body: "hello"})
	if !response.OK || response.Kind != protocol.KindText {
		t.Fatalf("text response = %+v", response)
	}

	// File bytes are stored verbatim.
	fileData := []byte("data\x00with nul")
	response = roundtrip(t, conn, protocol.File{Name: "a.txt", Data: fileData})
	if !response.OK || response.Kind != protocol.KindFile {
		t.Fatalf("file response = %+v", response)
	}
	wantPath := filepath.Join(ts.filesDir, "a.txt")
	if response.Path != wantPath {
		t.Errorf("file path = %q, want %q", response.Path, wantPath)
	}
	if response.Digest != filestore.HashBytes(fileData).String() {
		t.Errorf("file digest = %q", response.Digest)
	}
	stored, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(stored, fileData) {
		t.Errorf("stored file = %q, want %q", stored, fileData)
	}

	// Images are canonicalised to PNG under images/.
	bmpData, source := testBMP(t)
	response = roundtrip(t, conn, protocol.Image{Name: "pic.bmp", Data: bmpData, DeclaredFormat: "bmp"})
	if !response.OK || response.Kind != protocol.KindImage {
		t.Fatalf("image response = %+v", response)
	}
	if response.Path != filepath.Join(ts.imagesDir, "pic.png") {
		t.Errorf("image path = %q", response.Path)
	}
	if response.Format != "bmp" || response.Width != 3 || response.Height != 2 {
		t.Errorf("image metadata = %s %dx%d", response.Format, response.Width, response.Height)
	}
	pngData, err := os.ReadFile(response.Path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(pngData))
	if err != nil {
		t.Fatalf("stored image is not PNG: %v", err)
	}
	for y := range 2 {
		for x := range 3 {
			got := color.NRGBAModel.Convert(decoded.At(x, y))
			if got != source.NRGBAAt(x, y) {
				t.Errorf("pixel (%d,%d) = %v, want %v", x, y, got, source.NRGBAAt(x, y))
			}
		}
	}

	// Quit is acknowledged, then the server closes the connection.
	response = roundtrip(t, conn, protocol.Quit{})
	if !response.OK || response.Kind != protocol.KindQuit {
		t.Fatalf("quit response = %+v", response)
	}
	requireClosedByPeer(t, conn)

	entries, err := os.ReadDir(ts.filesDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("files/ has %d entries, want 1 (text must not be persisted)", len(entries))
	}
}

func TestCompressedPayloads(t *testing.T) {
	ts := startServer(t, Options{})
	conn := dial(t, ts.address)

	data := bytes.Repeat([]byte("compressible line\n"), 1000)
	for _, tag := range []compress.Tag{compress.LZ4, compress.Zstd} {
		payload, err := protocol.Codec{Compression: tag}.Encode(protocol.File{Name: "big.txt", Data: data})
		if err != nil {
			t.Fatalf("Encode(%v): %v", tag, err)
		}
		response := roundtripRaw(t, conn, payload)
		if !response.OK {
			t.Fatalf("%v: response = %+v", tag, response)
		}
		stored, err := os.ReadFile(response.Path)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if !bytes.Equal(stored, data) {
			t.Errorf("%v: stored %d bytes, want %d", tag, len(stored), len(data))
		}
	}
}

func TestPerMessageErrorsKeepConnection(t *testing.T) {
	ts := startServer(t, Options{})
	conn := dial(t, ts.address)

	tests := []struct {
		name     string
		payload  func() []byte
		wantCode protocol.ErrorCode
	}{
		{
			name:     "malformed frame",
			payload:  func() []byte { return []byte{0xFF, 0xFE, 0xFD} },
			wantCode: protocol.CodeMalformedMessage,
		},
		{
			name:     "empty frame",
			payload:  func() []byte { return nil },
			wantCode: protocol.CodeMalformedMessage,
		},
		{
			name: "path traversal",
			payload: func() []byte {
				data, _ := protocol.Encode(protocol.File{Name: "../escape.txt", Data: []byte("x")})
				return data
			},
			wantCode: protocol.CodeInvalidName,
		},
		{
			name: "corrupt image",
			payload: func() []byte {
				bmpData, _ := testBMP(t)
				data, _ := protocol.Encode(protocol.Image{Name: "bad.bmp", Data: bmpData[:40]})
				return data
			},
			wantCode: protocol.CodeCorruptImage,
		},
		{
			name: "unsupported image",
			payload: func() []byte {
				data, _ := protocol.Encode(protocol.Image{Name: "x.png", Data: []byte("not an image")})
				return data
			},
			wantCode: protocol.CodeUnsupportedFormat,
		},
	}

	for _, test := range tests {
		response := roundtripRaw(t, conn, test.payload())
		if response.OK {
			t.Fatalf("%s: response OK, want failure", test.name)
		}
		if response.Code != test.wantCode {
			t.Errorf("%s: code = %q, want %q (error %q)", test.name, response.Code, test.wantCode, response.Error)
		}

		// The connection survives and still serves requests.
		if ack := roundtrip(t, conn, protocol.Text{Body: "still there?"}); !ack.OK {
			t.Fatalf("%s: follow-up text failed: %+v", test.name, ack)
		}
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(ts.filesDir), "escape.txt")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("traversal wrote outside files/: %v", err)
	}
	entries, err := os.ReadDir(ts.imagesDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("images/ has %d entries after failed conversions", len(entries))
	}
}

func TestImageHintMismatchReported(t *testing.T) {
	ts := startServer(t, Options{})
	conn := dial(t, ts.address)

	bmpData, _ := testBMP(t)
	response := roundtrip(t, conn, protocol.Image{Name: "liar.png", Data: bmpData, DeclaredFormat: "png"})
	if !response.OK {
		t.Fatalf("response = %+v", response)
	}
	if response.Format != "bmp" {
		t.Errorf("format = %q, want bmp", response.Format)
	}
	if response.Detail != "declared png, content is bmp" {
		t.Errorf("detail = %q", response.Detail)
	}
}

func TestOversizedFrameClosesConnection(t *testing.T) {
	ts := startServer(t, Options{MaxFrameSize: 1024})
	conn := dial(t, ts.address)

	// Only the header is sent: the server must reject on the declared
	// length alone.
	var header [transport.FrameHeaderLength]byte
	binary.BigEndian.PutUint32(header[:], 4096)
	if _, err := conn.Conn.Write(header[:]); err != nil {
		t.Fatalf("Write: %v", err)
	}
	requireClosedByPeer(t, conn)

	// Other connections are unaffected.
	other := dial(t, ts.address)
	if response := roundtrip(t, other, protocol.Text{Body: "hi"}); !response.OK {
		t.Errorf("second connection response = %+v", response)
	}
}

func TestPeerCloseMidFrame(t *testing.T) {
	ts := startServer(t, Options{})
	conn := dial(t, ts.address)

	var header [transport.FrameHeaderLength]byte
	binary.BigEndian.PutUint32(header[:], 100)
	if _, err := conn.Conn.Write(append(header[:], "partial"...)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	conn.Close()

	// The server survives and keeps accepting.
	other := dial(t, ts.address)
	if response := roundtrip(t, other, protocol.Text{Body: "hi"}); !response.OK {
		t.Errorf("response after peer close = %+v", response)
	}
}

func TestConcurrentClientsSameName(t *testing.T) {
	ts := startServer(t, Options{})

	const clients = 10
	paths := make(chan string, clients)
	var wg sync.WaitGroup
	for range clients {
		conn := dial(t, ts.address)
		wg.Go(func() {
			payload, err := protocol.Encode(protocol.File{Name: "same.txt", Data: []byte(testutil.UniqueID("client"))})
			if err != nil {
				t.Errorf("Encode: %v", err)
				return
			}
			if err := conn.WriteFrame(payload); err != nil {
				t.Errorf("WriteFrame: %v", err)
				return
			}
			frame, err := conn.ReadFrame()
			if err != nil {
				t.Errorf("ReadFrame: %v", err)
				return
			}
			response, err := protocol.DecodeResponse(frame)
			if err != nil || !response.OK {
				t.Errorf("response = %+v, %v", response, err)
				return
			}
			paths <- response.Path
		})
	}
	wg.Wait()
	close(paths)

	seen := make(map[string]bool)
	for path := range paths {
		if seen[path] {
			t.Errorf("path %s returned twice", path)
		}
		seen[path] = true
	}
	if len(seen) != clients {
		t.Errorf("got %d distinct paths, want %d", len(seen), clients)
	}
}

func TestShutdownClosesConnections(t *testing.T) {
	ts := startServer(t, Options{})
	conn := dial(t, ts.address)
	if response := roundtrip(t, conn, protocol.Text{Body: "hi"}); !response.OK {
		t.Fatalf("response = %+v", response)
	}

	ts.cancel()
	if err := testutil.RequireReceive(t, ts.done, testTimeout, "Serve return"); err != nil {
		t.Fatalf("Serve = %v, want nil", err)
	}
	// Put the result back for the cleanup in startServer.
	ts.done <- nil

	requireClosedByPeer(t, conn)
	if _, err := net.DialTimeout("tcp", ts.address, time.Second); err == nil {
		t.Error("dial succeeded after shutdown")
	}
}

func TestListenAndServeBindError(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer occupied.Close()

	files, _ := filestore.New(t.TempDir())
	server, err := New(Options{Address: occupied.Addr().String(), Files: files, Images: files})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = server.ListenAndServe(context.Background())
	var bindErr *transport.BindError
	if !errors.As(err, &bindErr) {
		t.Fatalf("ListenAndServe = %v, want *transport.BindError", err)
	}
	if class, _ := classify(err); class != ClassStartup {
		t.Errorf("bind failure classified as %v", class)
	}
}

func TestNewRequiresStores(t *testing.T) {
	files, _ := filestore.New(t.TempDir())
	if _, err := New(Options{Images: files}); err == nil {
		t.Error("New without Files should fail")
	}
	if _, err := New(Options{Files: files}); err == nil {
		t.Error("New without Images should fail")
	}
	if _, err := New(Options{Files: files, Images: files, MaxFrameSize: -1}); err == nil {
		t.Error("New with negative MaxFrameSize should fail")
	}
}

// failingSaver returns err from every save.
type failingSaver struct {
	err error
}

func (f failingSaver) Save(string, []byte) (filestore.Artifact, error) {
	return filestore.Artifact{}, f.err
}

func (f failingSaver) SaveWithExtension(string, string, []byte) (filestore.Artifact, error) {
	return filestore.Artifact{}, f.err
}

func TestStorageFailureReported(t *testing.T) {
	diskFull := &fs.PathError{Op: "write", Path: "files/x", Err: errors.New("no space left on device")}
	ts := startServer(t, Options{Files: failingSaver{err: diskFull}, Images: failingSaver{err: errors.New("boom")}})
	conn := dial(t, ts.address)

	response := roundtrip(t, conn, protocol.File{Name: "x", Data: []byte("x")})
	if response.OK || response.Code != protocol.CodeStorage {
		t.Errorf("file response = %+v, want storage failure", response)
	}

	bmpData, _ := testBMP(t)
	response = roundtrip(t, conn, protocol.Image{Name: "x.bmp", Data: bmpData})
	if response.OK || response.Code != protocol.CodeInternal {
		t.Errorf("image response = %+v, want internal failure", response)
	}
}

// stubConverter records the declared format it was given.
type stubConverter struct {
	mu       sync.Mutex
	declared []string
}

func (s *stubConverter) Convert(data []byte, declaredFormat string) (imagepipe.Result, error) {
	s.mu.Lock()
	s.declared = append(s.declared, declaredFormat)
	s.mu.Unlock()
	return imagepipe.Result{Data: data, SourceFormat: "stub", Width: 1, Height: 1}, nil
}

func TestPipelineCapability(t *testing.T) {
	converter := &stubConverter{}
	ts := startServer(t, Options{Pipeline: converter})
	conn := dial(t, ts.address)

	response := roundtrip(t, conn, protocol.Image{Name: "raw.xyz", Data: []byte("pixels"), DeclaredFormat: "xyz"})
	if !response.OK || response.Format != "stub" {
		t.Fatalf("response = %+v", response)
	}
	if response.Path != filepath.Join(ts.imagesDir, "raw.png") {
		t.Errorf("path = %q", response.Path)
	}
	converter.mu.Lock()
	defer converter.mu.Unlock()
	if len(converter.declared) != 1 || converter.declared[0] != "xyz" {
		t.Errorf("converter saw declared formats %v", converter.declared)
	}
}

func TestReadTimeoutClosesIdleConnection(t *testing.T) {
	ts := startServer(t, Options{ReadTimeout: 50 * time.Millisecond})
	conn := dial(t, ts.address)
	requireClosedByPeer(t, conn)
}
