// Package snapshot persists whole registry snapshots.
//
// A Store keeps encoded registry.Snapshot values and hands back the newest
// one on Load. Derived indices are never stored; registry.Engine.Restore
// rebuilds them.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/landctl/internal/registry"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// FormatVersion is written into every encoded snapshot.
const FormatVersion = 1

var (
	ErrNotFound           = errors.New("snapshot: not found")
	ErrUnsupportedVersion = errors.New("snapshot: unsupported format version")
	ErrCorrupt            = errors.New("snapshot: corrupt payload")
)

// Meta describes one stored snapshot.
type Meta struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	LandCount int       `json:"land_count"`
	Size      int       `json:"size"`
}

// Store persists snapshots. Load returns the newest saved snapshot or
// ErrNotFound.
type Store interface {
	Save(ctx context.Context, snap registry.Snapshot) (Meta, error)
	Load(ctx context.Context) (registry.Snapshot, Meta, error)
	Close() error
}

type envelope struct {
	Version   int               `cbor:"v"`
	ID        string            `cbor:"id"`
	CreatedAt time.Time         `cbor:"created_at"`
	Snapshot  registry.Snapshot `cbor:"snapshot"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

// NewMeta allocates an identifier and timestamp for a snapshot of snap.
func NewMeta(snap registry.Snapshot, now time.Time) Meta {
	return Meta{
		ID:        uuid.NewString(),
		CreatedAt: now.UTC(),
		LandCount: len(snap.Lands),
	}
}

// Encode serializes snap with its metadata. The returned Meta carries the
// payload size.
func Encode(meta Meta, snap registry.Snapshot) ([]byte, Meta, error) {
	data, err := encMode.Marshal(envelope{
		Version:   FormatVersion,
		ID:        meta.ID,
		CreatedAt: meta.CreatedAt,
		Snapshot:  snap,
	})
	if err != nil {
		return nil, Meta{}, fmt.Errorf("encode snapshot: %w", err)
	}
	meta.Size = len(data)
	return data, meta, nil
}

// Decode parses a payload written by Encode.
func Decode(data []byte) (registry.Snapshot, Meta, error) {
	var env envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return registry.Snapshot{}, Meta{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if env.Version != FormatVersion {
		return registry.Snapshot{}, Meta{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}
	return env.Snapshot, Meta{
		ID:        env.ID,
		CreatedAt: env.CreatedAt.UTC(),
		LandCount: len(env.Snapshot.Lands),
		Size:      len(data),
	}, nil
}
