package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	cfgpkg "github.com/local/simbatch/internal/config"
	logpkg "github.com/local/simbatch/internal/logger"
	"github.com/local/simbatch/internal/metrics"
	"github.com/local/simbatch/internal/pipeline"
)

func main() {
	cfg := cfgpkg.FromEnv()

	if err := logpkg.Init(logpkg.Options{
		Level:     cfg.Logging.Level,
		Pretty:    cfg.Logging.Pretty,
		File:      cfg.Logging.File,
		ErrorFile: cfg.Logging.ErrorFile,
		RunID:     uuid.NewString(),
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to init logging")
	}

	metrics.Init()

	stats, err := pipeline.Run(context.Background(), cfg)
	if err != nil {
		log.Error().Err(err).Msg("run aborted")
		writeMetrics(cfg.MetricsFile)
		os.Exit(1)
	}

	writeMetrics(cfg.MetricsFile)
	os.Exit(stats.ExitCode())
}

func writeMetrics(path string) {
	if path == "" {
		return
	}
	if err := metrics.WriteSnapshot(path); err != nil {
		log.Error().Err(err).Str("file", path).Msg("failed to write metrics snapshot")
	}
}
