package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/landctl/internal/config"
	"github.com/danmuck/landctl/internal/logging"
	"github.com/danmuck/landctl/internal/observability"
	"github.com/danmuck/landctl/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	path := flag.String("config", config.DefaultPath, "path to landctl.toml")
	flag.Parse()

	logging.ConfigureRuntime()
	gin.SetMode(gin.ReleaseMode)

	cfg, err := loadConfig(*path)
	if err != nil {
		log.Fatal().Err(err).Str("config", *path).Msg("landctl: load config")
	}
	observability.InitLogger(cfg.ID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := service.New(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("landctl: bootstrap")
		os.Exit(1)
	}
	if err := svc.Run(ctx); err != nil {
		log.Error().Err(err).Msg("landctl: run")
		os.Exit(1)
	}
}

// loadConfig falls back to defaults plus environment overrides when the
// file does not exist.
func loadConfig(path string) (config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("config", path).Msg("config file not found, using defaults")
		cfg := config.DefaultConfig()
		if err := config.ApplyEnv(&cfg); err != nil {
			return config.Config{}, err
		}
		return cfg, config.Validate(cfg)
	}
	return config.Load(path)
}
