// Package pipeline runs the sequential batch loop: for each archive in
// the source directory — stage, extract, locate, render, destage, clean.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/local/simbatch/internal/archive"
	"github.com/local/simbatch/internal/config"
	"github.com/local/simbatch/internal/filetype"
	"github.com/local/simbatch/internal/metrics"
	"github.com/local/simbatch/internal/renderer"
)

// Run processes every matching archive in the source directory exactly
// once, sequentially. The returned error is fatal (preflight or a
// working directory lost mid-run); per-archive failures are counted in
// RunStats instead.
func Run(ctx context.Context, cfg config.Config) (RunStats, error) {
	var stats RunStats

	rend := renderer.New(cfg.Renderer.Path, cfg.Renderer.FPS)
	if err := rend.Check(); err != nil {
		return stats, err
	}

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return stats, fmt.Errorf("create work dir: %w", err)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return stats, fmt.Errorf("create output dir: %w", err)
	}

	archives, err := archive.Scan(cfg.SourceDir)
	if err != nil {
		return stats, err
	}
	stats.Total = len(archives)

	PurgeStale(cfg.WorkDir, cfg.OutputDir)

	if len(archives) == 0 {
		log.Info().Str("source", cfg.SourceDir).Msg("no archives found, nothing to do")
		logSummary(stats)
		return stats, nil
	}

	log.Info().Int("count", stats.Total).Str("source", cfg.SourceDir).Msg("found archives")

	det := filetype.New()
	for i, ar := range archives {
		// The working directory is reused across archives; losing it
		// between iterations aborts the run.
		if _, err := os.Stat(cfg.WorkDir); err != nil {
			return stats, fmt.Errorf("work dir inaccessible: %w", err)
		}

		jl := log.With().
			Str("job_id", uuid.NewString()).
			Str("archive", ar.Name).
			Int("index", i+1).
			Int("total", stats.Total).
			Logger()

		if processArchive(ctx, cfg, jl, det, rend, ar) {
			stats.Succeeded++
			metrics.IncProcessed("success")
		} else {
			stats.Failed++
			metrics.IncProcessed("failed")
		}
	}

	logSummary(stats)
	return stats, nil
}

// processArchive runs the six-step pipeline for one archive. Each step
// is attempted only if the prior step succeeded, except that cleanup
// (destage + clean target) still runs after a render failure.
func processArchive(
	ctx context.Context,
	cfg config.Config,
	jl zerolog.Logger,
	det *filetype.Detector,
	rend *renderer.Renderer,
	ar archive.Archive,
) bool {
	if params := archive.ParseParams(ar.Identity); !params.Empty() {
		jl.Info().
			Str("frequency_ghz", params.FrequencyGHz).
			Str("spin", params.Spin).
			Str("inclination", params.Inclination).
			Str("rhigh", params.Rhigh).
			Msg("parsed simulation parameters")
	}

	// --- Stage ---
	staged := filepath.Join(cfg.WorkDir, ar.Name)
	size, sum, err := stage(ar.Path, staged)
	if err != nil {
		jl.Error().Err(err).Str("step", "stage").Msg("failed to stage archive")
		metrics.IncStepFailure("stage")
		return false
	}
	metrics.SetStagedBytes(size)
	jl.Info().Int64("bytes", size).Str("sha256", sum).Msg("staged archive")

	// --- Extract ---
	ex, err := archive.Extract(staged, cfg.WorkDir, det)
	if err != nil {
		jl.Error().Err(err).Str("step", "extract").Msg("failed to extract archive")
		metrics.IncStepFailure("extract")
		if ex != nil {
			cleanTarget(jl, ex)
		}
		destage(jl, staged)
		return false
	}

	// --- Locate ---
	if err := ex.SelectTarget(cfg.WorkDir, det); err != nil {
		jl.Error().Err(err).Str("step", "locate").Msg("no usable extraction target")
		metrics.IncStepFailure("locate")
		cleanTarget(jl, ex)
		destage(jl, staged)
		return false
	}
	jl.Info().Str("target", ex.Target).Bool("in_work_dir", ex.InWorkDir).Msg("selected extraction target")

	// --- Render ---
	outPath := filepath.Join(cfg.OutputDir, ar.Identity+cfg.Renderer.VideoExt)
	res, renderErr := rend.Render(ctx, ex.Target, outPath, ar.Identity)
	if res != nil {
		metrics.ObserveRender(res.Duration)
	}
	if renderErr != nil {
		metrics.IncStepFailure("render")
	}

	// --- Destage + clean extraction target ---
	// Always run, even after a render failure, so no state leaks into
	// the next iteration.
	destage(jl, staged)
	cleanTarget(jl, ex)

	if renderErr != nil {
		return false
	}

	jl.Info().Str("movie", outPath).Msg("archive processed")
	return true
}

// stage copies the archive from the source location into the working
// directory and returns the copied size and checksum.
func stage(src, dst string) (int64, string, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, "", fmt.Errorf("open source archive: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, "", fmt.Errorf("create staged copy: %w", err)
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(out, h), in)
	if err != nil {
		out.Close()
		os.Remove(dst)
		return 0, "", fmt.Errorf("copy archive: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return 0, "", fmt.Errorf("finish staged copy: %w", err)
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

// destage removes the staged archive copy. Best effort; a failure is
// logged, never escalated.
func destage(jl zerolog.Logger, staged string) {
	if err := os.Remove(staged); err != nil && !os.IsNotExist(err) {
		jl.Error().Err(err).Str("step", "cleanup").Str("staged", staged).Msg("failed to remove staged copy")
		metrics.IncStepFailure("cleanup")
	}
}

// cleanTarget removes whatever extraction created. Best effort.
func cleanTarget(jl zerolog.Logger, ex *archive.Extraction) {
	if err := ex.Clean(); err != nil {
		jl.Error().Err(err).Str("step", "cleanup").Msg("failed to clean extraction target")
		metrics.IncStepFailure("cleanup")
	}
}

func logSummary(stats RunStats) {
	log.Info().
		Int("total", stats.Total).
		Int("succeeded", stats.Succeeded).
		Int("failed", stats.Failed).
		Msg("run complete")
}
