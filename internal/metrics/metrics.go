package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

var (
	archivesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simbatch",
			Name:      "archives_processed_total",
			Help:      "Total archives processed by result (success, failed)",
		},
		[]string{"result"},
	)

	stepFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simbatch",
			Name:      "step_failures_total",
			Help:      "Per-archive step failures by step (stage, extract, locate, render, cleanup)",
		},
		[]string{"step"},
	)

	renderDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "simbatch",
			Name:      "render_duration_seconds",
			Help:      "Duration of external renderer invocations",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	stalePurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "simbatch",
			Name:      "stale_entries_purged_total",
			Help:      "Stale working-directory entries purged at startup",
		},
	)

	stagedBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "simbatch",
			Name:      "staged_bytes",
			Help:      "Size of the most recently staged archive copy",
		},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(archivesProcessed, stepFailures, renderDuration, stalePurged, stagedBytes)
}

func IncProcessed(result string)      { archivesProcessed.WithLabelValues(result).Inc() }
func IncStepFailure(step string)      { stepFailures.WithLabelValues(step).Inc() }
func ObserveRender(dur time.Duration) { renderDuration.Observe(dur.Seconds()) }
func IncStalePurged()                 { stalePurged.Inc() }
func SetStagedBytes(n int64)          { stagedBytes.Set(float64(n)) }

// WriteSnapshot dumps the default registry in Prometheus text format to
// path. The run has no HTTP surface, so the snapshot file is the only
// metrics export (textfile-collector style).
func WriteSnapshot(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open metrics file: %w", err)
	}
	defer f.Close()

	enc := expfmt.NewEncoder(f, expfmt.FmtText)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}
