// Package config loads landctl.toml onto built-in defaults and applies
// LANDCTL_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/danmuck/landctl/internal/registry"
)

const (
	DriverNone   = "none"
	DriverSQLite = "sqlite"
	DriverFile   = "file"

	DefaultPath = "landctl.toml"
)

var ErrInvalidConfig = errors.New("config: invalid")

type Config struct {
	ID                   string
	Addr                 string
	CorsOrigins          []string
	InitialAdmin         string
	TrustPrincipalHeader bool
	Principals           []PrincipalConfig
	JWT                  JWTConfig
	Snapshot             SnapshotConfig
	Feed                 FeedConfig
}

// PrincipalConfig binds a bearer token to a registry principal.
type PrincipalConfig struct {
	ID    string `toml:"id"`
	Token string `toml:"token"`
}

// JWTConfig enables HS256 bearer tokens when Secret is set.
type JWTConfig struct {
	Secret string `toml:"secret"`
	Issuer string `toml:"issuer"`
}

type SnapshotConfig struct {
	Driver         string
	Path           string
	Interval       time.Duration
	SaveOnShutdown bool
	Keep           int
}

type FeedConfig struct {
	Enabled bool
	Buffer  int
}

func DefaultConfig() Config {
	return Config{
		ID:           "landctl",
		Addr:         ":9400",
		CorsOrigins:  []string{"http://localhost:3000"},
		InitialAdmin: "admin",
		Snapshot: SnapshotConfig{
			Driver:         DriverSQLite,
			Path:           "data/landctl.db",
			Interval:       5 * time.Minute,
			SaveOnShutdown: true,
			Keep:           10,
		},
		Feed: FeedConfig{
			Enabled: true,
			Buffer:  64,
		},
	}
}

// fileConfig is the landctl.toml key layout.
type fileConfig struct {
	ID                   string            `toml:"id"`
	Addr                 string            `toml:"addr"`
	CorsOrigins          []string          `toml:"cors_origins"`
	InitialAdmin         string            `toml:"initial_admin"`
	TrustPrincipalHeader bool              `toml:"trust_principal_header"`
	Principals           []PrincipalConfig `toml:"principals"`
	JWT                  JWTConfig         `toml:"jwt"`
	Snapshot             fileSnapshot      `toml:"snapshot"`
	Feed                 fileFeed          `toml:"feed"`
}

type fileSnapshot struct {
	Driver         string `toml:"driver"`
	Path           string `toml:"path"`
	Interval       string `toml:"interval"`
	SaveOnShutdown bool   `toml:"save_on_shutdown"`
	Keep           int    `toml:"keep"`
}

type fileFeed struct {
	Enabled bool `toml:"enabled"`
	Buffer  int  `toml:"buffer"`
}

// envConfig lists the environment overrides. Unset variables leave the
// loaded value alone.
type envConfig struct {
	ID                   *string        `env:"LANDCTL_ID"`
	Addr                 *string        `env:"LANDCTL_ADDR"`
	CorsOrigins          []string       `env:"LANDCTL_CORS_ORIGINS" envSeparator:","`
	InitialAdmin         *string        `env:"LANDCTL_INITIAL_ADMIN"`
	TrustPrincipalHeader *bool          `env:"LANDCTL_TRUST_PRINCIPAL_HEADER"`
	JWTSecret            *string        `env:"LANDCTL_JWT_SECRET"`
	JWTIssuer            *string        `env:"LANDCTL_JWT_ISSUER"`
	SnapshotDriver       *string        `env:"LANDCTL_SNAPSHOT_DRIVER"`
	SnapshotPath         *string        `env:"LANDCTL_SNAPSHOT_PATH"`
	SnapshotInterval     *time.Duration `env:"LANDCTL_SNAPSHOT_INTERVAL"`
	SnapshotKeep         *int           `env:"LANDCTL_SNAPSHOT_KEEP"`
	FeedEnabled          *bool          `env:"LANDCTL_FEED_ENABLED"`
}

// Load reads path onto DefaultConfig, applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load landctl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %q", ErrInvalidConfig, undecoded[0].String())
	}

	if meta.IsDefined("id") {
		cfg.ID = strings.TrimSpace(raw.ID)
	}
	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("initial_admin") {
		cfg.InitialAdmin = strings.TrimSpace(raw.InitialAdmin)
	}
	if meta.IsDefined("trust_principal_header") {
		cfg.TrustPrincipalHeader = raw.TrustPrincipalHeader
	}
	if meta.IsDefined("principals") {
		cfg.Principals = raw.Principals
	}
	if meta.IsDefined("jwt", "secret") {
		cfg.JWT.Secret = raw.JWT.Secret
	}
	if meta.IsDefined("jwt", "issuer") {
		cfg.JWT.Issuer = strings.TrimSpace(raw.JWT.Issuer)
	}
	if meta.IsDefined("snapshot", "driver") {
		cfg.Snapshot.Driver = strings.ToLower(strings.TrimSpace(raw.Snapshot.Driver))
	}
	if meta.IsDefined("snapshot", "path") {
		cfg.Snapshot.Path = strings.TrimSpace(raw.Snapshot.Path)
	}
	if meta.IsDefined("snapshot", "interval") {
		interval, err := time.ParseDuration(strings.TrimSpace(raw.Snapshot.Interval))
		if err != nil {
			return Config{}, fmt.Errorf("%w: snapshot.interval: %v", ErrInvalidConfig, err)
		}
		cfg.Snapshot.Interval = interval
	}
	if meta.IsDefined("snapshot", "save_on_shutdown") {
		cfg.Snapshot.SaveOnShutdown = raw.Snapshot.SaveOnShutdown
	}
	if meta.IsDefined("snapshot", "keep") {
		cfg.Snapshot.Keep = raw.Snapshot.Keep
	}
	if meta.IsDefined("feed", "enabled") {
		cfg.Feed.Enabled = raw.Feed.Enabled
	}
	if meta.IsDefined("feed", "buffer") {
		cfg.Feed.Buffer = raw.Feed.Buffer
	}

	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overlays LANDCTL_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	var over envConfig
	if err := env.Parse(&over); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if over.ID != nil {
		cfg.ID = strings.TrimSpace(*over.ID)
	}
	if over.Addr != nil {
		cfg.Addr = strings.TrimSpace(*over.Addr)
	}
	if over.CorsOrigins != nil {
		cfg.CorsOrigins = over.CorsOrigins
	}
	if over.InitialAdmin != nil {
		cfg.InitialAdmin = strings.TrimSpace(*over.InitialAdmin)
	}
	if over.TrustPrincipalHeader != nil {
		cfg.TrustPrincipalHeader = *over.TrustPrincipalHeader
	}
	if over.JWTSecret != nil {
		cfg.JWT.Secret = *over.JWTSecret
	}
	if over.JWTIssuer != nil {
		cfg.JWT.Issuer = strings.TrimSpace(*over.JWTIssuer)
	}
	if over.SnapshotDriver != nil {
		cfg.Snapshot.Driver = strings.ToLower(strings.TrimSpace(*over.SnapshotDriver))
	}
	if over.SnapshotPath != nil {
		cfg.Snapshot.Path = strings.TrimSpace(*over.SnapshotPath)
	}
	if over.SnapshotInterval != nil {
		cfg.Snapshot.Interval = *over.SnapshotInterval
	}
	if over.SnapshotKeep != nil {
		cfg.Snapshot.Keep = *over.SnapshotKeep
	}
	if over.FeedEnabled != nil {
		cfg.Feed.Enabled = *over.FeedEnabled
	}
	return nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("%w: addr is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.InitialAdmin) == "" {
		return fmt.Errorf("%w: initial_admin is required", ErrInvalidConfig)
	}
	if reservedPrincipal(cfg.InitialAdmin) {
		return fmt.Errorf("%w: initial_admin %q is reserved", ErrInvalidConfig, cfg.InitialAdmin)
	}

	seenTokens := make(map[string]struct{}, len(cfg.Principals))
	for i, p := range cfg.Principals {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("%w: principals[%d] missing id", ErrInvalidConfig, i)
		}
		if reservedPrincipal(p.ID) {
			return fmt.Errorf("%w: principals[%d] id %q is reserved", ErrInvalidConfig, i, p.ID)
		}
		if strings.TrimSpace(p.Token) == "" {
			return fmt.Errorf("%w: principals[%d] missing token", ErrInvalidConfig, i)
		}
		if _, dup := seenTokens[p.Token]; dup {
			return fmt.Errorf("%w: principals[%d] reuses a token", ErrInvalidConfig, i)
		}
		seenTokens[p.Token] = struct{}{}
	}

	switch cfg.Snapshot.Driver {
	case DriverNone:
	case DriverSQLite, DriverFile:
		if strings.TrimSpace(cfg.Snapshot.Path) == "" {
			return fmt.Errorf("%w: snapshot.path is required for driver %q", ErrInvalidConfig, cfg.Snapshot.Driver)
		}
	default:
		return fmt.Errorf("%w: unknown snapshot driver %q", ErrInvalidConfig, cfg.Snapshot.Driver)
	}
	if cfg.Snapshot.Interval < 0 {
		return fmt.Errorf("%w: snapshot.interval must not be negative", ErrInvalidConfig)
	}
	if cfg.Snapshot.Keep < 0 {
		return fmt.Errorf("%w: snapshot.keep must not be negative", ErrInvalidConfig)
	}
	if cfg.Feed.Buffer < 0 {
		return fmt.Errorf("%w: feed.buffer must not be negative", ErrInvalidConfig)
	}
	return nil
}

func reservedPrincipal(id string) bool {
	return strings.TrimSpace(id) == string(registry.Anonymous)
}
