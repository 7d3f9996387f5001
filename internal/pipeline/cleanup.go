package pipeline

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/local/simbatch/internal/metrics"
)

// PurgeStale removes pre-existing entries from the working directory
// before the first archive is staged. A crashed prior run can leave a
// staged copy or an extraction target behind; the per-archive invariant
// (empty working directory between iterations) only holds if those are
// gone. Every purged entry is logged at warn level so the purge is
// never silent. The output directory is spared in case it is nested
// under the working directory.
func PurgeStale(workDir, outputDir string) {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		log.Warn().Err(err).Str("dir", workDir).Msg("cannot inspect working directory for stale entries")
		return
	}

	outAbs, _ := filepath.Abs(outputDir)
	for _, e := range entries {
		p := filepath.Join(workDir, e.Name())
		if abs, err := filepath.Abs(p); err == nil && abs == outAbs {
			continue
		}
		log.Warn().Str("entry", p).Msg("purging stale working-directory entry from a previous run")
		if err := os.RemoveAll(p); err != nil {
			log.Error().Err(err).Str("entry", p).Msg("failed to purge stale entry")
			continue
		}
		metrics.IncStalePurged()
	}
}
