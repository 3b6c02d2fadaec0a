// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package filestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultMaxAttempts is the number of candidate names a Store tries
// before giving up with ErrAlreadyExists.
const DefaultMaxAttempts = 10000

// tempPattern names in-flight writes. The leading dot keeps them out
// of casual directory listings.
const tempPattern = ".courier-*.tmp"

var (
	// ErrInvalidName is returned when a name is empty, ".", "..",
	// absolute, contains a path separator, or contains a NUL byte.
	// Nothing is written.
	ErrInvalidName = errors.New("invalid file name")

	// ErrAlreadyExists is returned when every candidate name is
	// taken.
	ErrAlreadyExists = errors.New("no free file name")
)

// Artifact describes one stored file.
type Artifact struct {
	// Path is the stored file's path: the store directory joined
	// with Name.
	Path string

	// Name is the final file name, which differs from the requested
	// name when disambiguation was needed.
	Name string

	// Size is the number of bytes written.
	Size int64

	// Digest is the BLAKE3-256 digest of the stored bytes.
	Digest Digest
}

// Store writes files into one directory. A Store is safe for
// concurrent use by multiple goroutines.
type Store struct {
	dir string

	// MaxAttempts bounds name disambiguation. Zero means
	// DefaultMaxAttempts.
	MaxAttempts int
}

// New returns a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("filestore: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Save stores data under name in dir using a throwaway Store.
func Save(dir, name string, data []byte) (Artifact, error) {
	store, err := New(dir)
	if err != nil {
		return Artifact{}, err
	}
	return store.Save(name, data)
}

// Dir returns the directory the store writes into.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes data verbatim under name. If name is taken, the first
// free disambiguated name is used instead; the returned Artifact
// reports which.
func (s *Store) Save(name string, data []byte) (Artifact, error) {
	if err := ValidateName(name); err != nil {
		return Artifact{}, err
	}
	return s.save(name, data)
}

// SaveWithExtension writes data under name with its extension
// replaced by ext ("photo.bmp" with ".png" becomes "photo.png"). The
// leading dot on ext is optional.
func (s *Store) SaveWithExtension(name, ext string, data []byte) (Artifact, error) {
	if err := ValidateName(name); err != nil {
		return Artifact{}, err
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if strings.ContainsAny(ext, `/\`+"\x00") {
		return Artifact{}, fmt.Errorf("%w: extension %q", ErrInvalidName, ext)
	}
	stem, _ := splitName(name)
	return s.save(stem+ext, data)
}

// ValidateName reports whether name is a single, non-special path
// element. The returned error wraps ErrInvalidName.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: contains NUL", ErrInvalidName)
	case filepath.IsAbs(name), strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q is not a single path element", ErrInvalidName, name)
	case filepath.VolumeName(name) != "":
		return fmt.Errorf("%w: %q has a volume name", ErrInvalidName, name)
	}
	return nil
}

func (s *Store) save(name string, data []byte) (Artifact, error) {
	tmpFile, err := os.CreateTemp(s.dir, tempPattern)
	if err != nil {
		return Artifact{}, fmt.Errorf("creating temp file in %s: %w", s.dir, err)
	}
	tmpPath := tmpFile.Name()

	published := false
	defer func() {
		if !published {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return Artifact{}, fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmpFile.Sync(); err != nil {
		return Artifact{}, fmt.Errorf("syncing %s: %w", tmpPath, err)
	}
	if err := tmpFile.Close(); err != nil {
		return Artifact{}, fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	// CreateTemp uses 0600; stored files are ordinary user files.
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return Artifact{}, fmt.Errorf("setting mode on %s: %w", tmpPath, err)
	}

	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	stem, ext := splitName(name)
	for attempt := range maxAttempts {
		candidate := name
		if attempt > 0 {
			candidate = stem + "-" + strconv.Itoa(attempt) + ext
		}
		finalPath := filepath.Join(s.dir, candidate)

		err := publish(tmpPath, finalPath)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return Artifact{}, fmt.Errorf("publishing %s: %w", finalPath, err)
		}

		published = true
		return Artifact{
			Path:   finalPath,
			Name:   candidate,
			Size:   int64(len(data)),
			Digest: HashBytes(data),
		}, nil
	}

	return Artifact{}, fmt.Errorf("%w: %q and %d alternatives are taken",
		ErrAlreadyExists, name, maxAttempts-1)
}

// splitName splits a file name into stem and extension. Dotfiles
// without a further extension (".bashrc") are all stem.
func splitName(name string) (stem, ext string) {
	ext = filepath.Ext(name)
	stem = strings.TrimSuffix(name, ext)
	if stem == "" {
		return name, ""
	}
	return stem, ext
}

// linkPublish publishes tmpPath at finalPath with link(2), which fails
// with EEXIST rather than replacing an existing file, then removes
// the temporary name.
func linkPublish(tmpPath, finalPath string) error {
	if err := os.Link(tmpPath, finalPath); err != nil {
		return err
	}
	// The data is already reachable at finalPath. A leftover temp
	// name is harmless.
	_ = os.Remove(tmpPath)
	return nil
}
