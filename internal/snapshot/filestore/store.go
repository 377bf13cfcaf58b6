// Package filestore keeps the latest registry snapshot in a single CBOR file.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danmuck/landctl/internal/registry"
	"github.com/danmuck/landctl/internal/snapshot"
)

// Store writes each snapshot over the previous one. Writes go to a temporary
// file in the same directory and are renamed into place.
type Store struct {
	path string
}

// Open prepares a store at path, creating its parent directory.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}
	clean := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(clean), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &Store{path: clean}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Save(ctx context.Context, snap registry.Snapshot) (snapshot.Meta, error) {
	if err := ctx.Err(); err != nil {
		return snapshot.Meta{}, err
	}
	data, meta, err := snapshot.Encode(snapshot.NewMeta(snap, time.Now()), snap)
	if err != nil {
		return snapshot.Meta{}, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return snapshot.Meta{}, fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return snapshot.Meta{}, fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return snapshot.Meta{}, fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return snapshot.Meta{}, fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return snapshot.Meta{}, fmt.Errorf("replace snapshot: %w", err)
	}
	return meta, nil
}

func (s *Store) Load(ctx context.Context) (registry.Snapshot, snapshot.Meta, error) {
	if err := ctx.Err(); err != nil {
		return registry.Snapshot{}, snapshot.Meta{}, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return registry.Snapshot{}, snapshot.Meta{}, snapshot.ErrNotFound
	}
	if err != nil {
		return registry.Snapshot{}, snapshot.Meta{}, fmt.Errorf("read snapshot: %w", err)
	}
	return snapshot.Decode(data)
}

func (s *Store) Close() error {
	return nil
}
