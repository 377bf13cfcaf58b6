// Package service assembles the registry engine, snapshot store, event feed
// and HTTP API from a config.Config and runs them as one process.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/landctl/internal/auth"
	"github.com/danmuck/landctl/internal/config"
	"github.com/danmuck/landctl/internal/feed"
	"github.com/danmuck/landctl/internal/httpapi"
	"github.com/danmuck/landctl/internal/observability"
	"github.com/danmuck/landctl/internal/registry"
	"github.com/danmuck/landctl/internal/snapshot"
	"github.com/danmuck/landctl/internal/snapshot/filestore"
	"github.com/danmuck/landctl/internal/snapshot/sqlitestore"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrSnapshotsDisabled = errors.New("service: snapshots disabled")

const shutdownSaveTimeout = 10 * time.Second

type pruner interface {
	Prune(ctx context.Context, keep int) (int64, error)
}

type Service struct {
	cfg    config.Config
	logger zerolog.Logger

	engine *registry.Engine
	store  snapshot.Store
	hub    *feed.Hub
	server *httpapi.Server

	saveMu sync.Mutex
}

// New opens the configured snapshot store, restores its newest snapshot
// and wires the engine observers and HTTP server.
func New(ctx context.Context, cfg config.Config) (*Service, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	s := &Service{
		cfg:    cfg,
		logger: log.With().Str("service", cfg.ID).Logger(),
	}

	s.engine = registry.New(
		registry.Principal(cfg.InitialAdmin),
		registry.WithObserver(observability.RegistryObserver(s.logger)),
	)

	store, err := openStore(ctx, cfg.Snapshot)
	if err != nil {
		return nil, err
	}
	s.store = store
	if err := s.restore(ctx); err != nil {
		_ = s.closeStore()
		return nil, err
	}

	opts := httpapi.Options{
		CorsOrigins:          cfg.CorsOrigins,
		Resolver:             resolverFor(cfg),
		TrustPrincipalHeader: cfg.TrustPrincipalHeader,
	}
	if s.store != nil {
		opts.Snapshotter = s
	}
	if cfg.Feed.Enabled {
		s.hub = feed.NewHub(cfg.Feed.Buffer, cfg.CorsOrigins)
		s.hub.OnClients = observability.RecordFeedClients
		s.engine.Subscribe(s.hub)
		opts.Feed = s.hub
	}
	s.server = httpapi.Appear(cfg.ID, cfg.Addr, s.engine, opts)
	return s, nil
}

func (s *Service) Engine() *registry.Engine {
	return s.engine
}

func (s *Service) Server() *httpapi.Server {
	return s.server
}

// SaveSnapshot persists the current registry state and, for stores that
// keep history, prunes down to the configured retention.
func (s *Service) SaveSnapshot(ctx context.Context) (snapshot.Meta, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if s.store == nil {
		return snapshot.Meta{}, ErrSnapshotsDisabled
	}

	start := time.Now()
	meta, err := s.store.Save(ctx, s.engine.Snapshot())
	observability.RecordSnapshotSave(s.cfg.Snapshot.Driver, time.Since(start), err == nil)
	if err != nil {
		return snapshot.Meta{}, fmt.Errorf("save snapshot: %w", err)
	}
	s.logger.Info().
		Str("snapshot", meta.ID).
		Int("lands", meta.LandCount).
		Int("bytes", meta.Size).
		Msg("snapshot saved")

	if p, ok := s.store.(pruner); ok && s.cfg.Snapshot.Keep > 0 {
		removed, err := p.Prune(ctx, s.cfg.Snapshot.Keep)
		if err != nil {
			s.logger.Warn().Err(err).Msg("snapshot prune failed")
		} else if removed > 0 {
			s.logger.Debug().Int64("removed", removed).Msg("snapshots pruned")
		}
	}
	return meta, nil
}

// Run serves HTTP until ctx is cancelled, taking periodic snapshots when an
// interval is configured. On the way out it saves a final snapshot when
// configured and releases the feed and store.
func (s *Service) Run(ctx context.Context) error {
	defer s.Close()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.server.Serve(ctx)
	}()

	var tick <-chan time.Time
	if s.store != nil && s.cfg.Snapshot.Interval > 0 {
		ticker := time.NewTicker(s.cfg.Snapshot.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	s.logger.Info().
		Str("addr", s.cfg.Addr).
		Str("snapshot_driver", s.cfg.Snapshot.Driver).
		Bool("feed", s.hub != nil).
		Msg("landctl running")

	var runErr error
loop:
	for {
		select {
		case <-tick:
			if _, err := s.SaveSnapshot(ctx); err != nil {
				s.logger.Error().Err(err).Msg("periodic snapshot failed")
			}
		case err := <-serveErr:
			runErr = err
			break loop
		case <-ctx.Done():
			runErr = <-serveErr
			break loop
		}
	}

	if s.store != nil && s.cfg.Snapshot.SaveOnShutdown {
		saveCtx, cancel := context.WithTimeout(context.Background(), shutdownSaveTimeout)
		if _, err := s.SaveSnapshot(saveCtx); err != nil {
			s.logger.Error().Err(err).Msg("shutdown snapshot failed")
			runErr = errors.Join(runErr, err)
		}
		cancel()
	}
	s.logger.Info().Msg("landctl stopped")
	return runErr
}

// Close disconnects feed subscribers and closes the snapshot store. It is
// safe to call more than once.
func (s *Service) Close() error {
	if s.hub != nil {
		s.hub.Close()
	}
	return s.closeStore()
}

func (s *Service) restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	snap, meta, err := s.store.Load(ctx)
	if errors.Is(err, snapshot.ErrNotFound) {
		s.logger.Info().Str("driver", s.cfg.Snapshot.Driver).Msg("no snapshot found, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if err := s.engine.Restore(snap); err != nil {
		return fmt.Errorf("restore snapshot %s: %w", meta.ID, err)
	}
	s.logger.Info().
		Str("snapshot", meta.ID).
		Time("created_at", meta.CreatedAt).
		Int("lands", meta.LandCount).
		Msg("snapshot restored")
	return nil
}

func (s *Service) closeStore() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	return err
}

func openStore(ctx context.Context, cfg config.SnapshotConfig) (snapshot.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		store, err := sqlitestore.Open(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverFile:
		store, err := filestore.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown snapshot driver %q", config.ErrInvalidConfig, cfg.Driver)
	}
}

func resolverFor(cfg config.Config) auth.Resolver {
	tokens := make(auth.StaticTokens, 0, len(cfg.Principals))
	for _, p := range cfg.Principals {
		tokens = append(tokens, auth.Credential{
			Principal: registry.Principal(p.ID),
			Token:     p.Token,
		})
	}
	if cfg.JWT.Secret == "" {
		return tokens
	}
	return auth.Chain{tokens, auth.JWTResolver{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
	}}
}
