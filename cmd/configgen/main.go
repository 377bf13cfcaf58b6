package main

import (
	"flag"

	"github.com/danmuck/landctl/internal/config"
	"github.com/danmuck/landctl/internal/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	output := flag.String("output", config.DefaultPath, "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", config.DefaultPath, "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	logging.ConfigureRuntime()

	if *validate {
		cfg, err := config.Load(*input)
		if err != nil {
			log.Fatal().Err(err).Str("path", *input).Msg("config invalid")
		}
		log.Info().
			Str("path", *input).
			Str("id", cfg.ID).
			Str("snapshot_driver", cfg.Snapshot.Driver).
			Int("principals", len(cfg.Principals)).
			Msg("config valid")
		return
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		log.Fatal().Err(err).Msg("write config template")
	}
	log.Info().Str("path", *output).Msg("wrote config template")
}
