// Package sqlitestore keeps a history of registry snapshots in SQLite.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/danmuck/landctl/internal/registry"
	"github.com/danmuck/landctl/internal/snapshot"
	"github.com/danmuck/landctl/internal/snapshot/sqlitestore/migrations"
	_ "modernc.org/sqlite"
)

// Store appends one row per saved snapshot; Load reads the newest.
type Store struct {
	db *sql.DB
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// Open opens a SQLite snapshot store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Save(ctx context.Context, snap registry.Snapshot) (snapshot.Meta, error) {
	if err := ctx.Err(); err != nil {
		return snapshot.Meta{}, err
	}
	data, meta, err := snapshot.Encode(snapshot.NewMeta(snap, time.Now()), snap)
	if err != nil {
		return snapshot.Meta{}, err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, created_at, land_count, format_version, payload)
		 VALUES (?, ?, ?, ?, ?)`,
		meta.ID,
		toMillis(meta.CreatedAt),
		meta.LandCount,
		snapshot.FormatVersion,
		data,
	); err != nil {
		return snapshot.Meta{}, fmt.Errorf("insert snapshot: %w", err)
	}
	meta.CreatedAt = fromMillis(toMillis(meta.CreatedAt))
	return meta, nil
}

func (s *Store) Load(ctx context.Context) (registry.Snapshot, snapshot.Meta, error) {
	if err := ctx.Err(); err != nil {
		return registry.Snapshot{}, snapshot.Meta{}, err
	}
	var (
		id        string
		createdAt int64
		payload   []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, payload FROM snapshots ORDER BY seq DESC LIMIT 1`,
	).Scan(&id, &createdAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.Snapshot{}, snapshot.Meta{}, snapshot.ErrNotFound
	}
	if err != nil {
		return registry.Snapshot{}, snapshot.Meta{}, fmt.Errorf("query snapshot: %w", err)
	}
	snap, meta, err := snapshot.Decode(payload)
	if err != nil {
		return registry.Snapshot{}, snapshot.Meta{}, fmt.Errorf("snapshot %s: %w", id, err)
	}
	meta.ID = id
	meta.CreatedAt = fromMillis(createdAt)
	return snap, meta, nil
}

// List returns metadata for every stored snapshot, newest first.
func (s *Store) List(ctx context.Context) ([]snapshot.Meta, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, land_count, length(payload) FROM snapshots ORDER BY seq DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]snapshot.Meta, 0)
	for rows.Next() {
		var (
			meta      snapshot.Meta
			createdAt int64
		)
		if err := rows.Scan(&meta.ID, &createdAt, &meta.LandCount, &meta.Size); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		meta.CreatedAt = fromMillis(createdAt)
		out = append(out, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return out, nil
}

// Prune deletes all but the keep newest snapshots and reports how many rows
// were removed. keep below one is treated as one.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE seq NOT IN (
		   SELECT seq FROM snapshots ORDER BY seq DESC LIMIT ?
		 )`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return n, nil
}
