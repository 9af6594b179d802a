// Package storage places original photos and thumbnails on the local
// filesystem, addressed by content hash. Once a path is observable its bytes
// are final: writes go to a temp file and are moved into place with an atomic
// rename.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Kind selects the file class within the store.
type Kind string

const (
	KindOriginal Kind = "original"
	KindThumb    Kind = "thumb"
)

// Store is a content-addressed file store rooted at a single directory.
type Store struct {
	root string
}

// New creates a store rooted at root. The root must be non-empty; it is
// created if missing.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the file path for a hash without touching the filesystem.
// Layout: <root>/<kind>/<hash[0:2]>/<hash[2:4]>/<hash>.<ext>
func (s *Store) Path(kind Kind, hash, ext string) string {
	name := hash
	if ext != "" {
		name = hash + "." + ext
	}
	return filepath.Join(s.root, string(kind), hash[:2], hash[2:4], name)
}

// Write stores the content of r under the given hash and kind. The write is
// idempotent: if the target already exists it is left untouched and the
// existing path is returned. Returns the final path and the number of bytes
// written (zero for an existing file).
func (s *Store) Write(kind Kind, hash, ext string, r io.Reader) (string, int64, error) {
	if len(hash) < 4 {
		return "", 0, fmt.Errorf("content hash too short: %q", hash)
	}

	dst := s.Path(kind, hash, ext)
	if _, err := os.Stat(dst); err == nil {
		return dst, 0, nil
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create storage directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+hash+".tmp-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", 0, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", 0, fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return "", 0, fmt.Errorf("rename into place: %w", err)
	}
	return dst, n, nil
}
