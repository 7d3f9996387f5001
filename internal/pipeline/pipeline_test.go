package pipeline

import (
	"archive/tar"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/local/simbatch/internal/config"
)

var hdf5Magic = []byte("\x89HDF\r\n\x1a\n")

// testConfig builds a config over temp dirs with a stub renderer script.
func testConfig(t *testing.T, rendererBody string) config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Config{
		SourceDir: filepath.Join(root, "archives"),
		WorkDir:   filepath.Join(root, "work"),
		OutputDir: filepath.Join(root, "movies"),
		Renderer: config.RendererConfig{
			Path:     filepath.Join(root, "render.sh"),
			FPS:      10,
			VideoExt: ".mp4",
		},
	}
	if err := os.MkdirAll(cfg.SourceDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.Renderer.Path, []byte(rendererBody), 0o755); err != nil {
		t.Fatal(err)
	}
	return cfg
}

// okRenderer writes the output file passed after --outfile and exits 0.
const okRenderer = "#!/bin/sh\n: > \"$3\"\nexit 0\n"

const failRenderer = "#!/bin/sh\necho render blew up >&2\nexit 1\n"

func writeRunArchive(t *testing.T, cfg config.Config, name, topDir string) {
	t.Helper()
	f, err := os.Create(filepath.Join(cfg.SourceDir, name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for _, frame := range []string{"frame_0000.h5", "frame_0001.h5"} {
		entry := frame
		if topDir != "" {
			entry = topDir + "/" + frame
		}
		if err := tw.WriteHeader(&tar.Header{Name: entry, Mode: 0o644, Size: int64(len(hdf5Magic))}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write(hdf5Magic); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name()
	}
	return out
}

func TestRun_EmptySource(t *testing.T) {
	cfg := testConfig(t, okRenderer)

	stats, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Total != 0 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want empty run", stats)
	}
	if stats.ExitCode() != 0 {
		t.Errorf("ExitCode = %d, want 0 for empty run", stats.ExitCode())
	}
}

func TestRun_SingleArchiveSuccess(t *testing.T) {
	cfg := testConfig(t, okRenderer)
	writeRunArchive(t, cfg, "run001.tar.gz", "run001")

	stats, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Total != 1 || stats.Succeeded != 1 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want 1/1/0", stats)
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputDir, "run001.mp4")); err != nil {
		t.Errorf("output artifact missing: %v", err)
	}
	if left := dirEntries(t, cfg.WorkDir); len(left) != 0 {
		t.Errorf("work dir not empty after run: %v", left)
	}
	// Source archive stays untouched.
	if _, err := os.Stat(filepath.Join(cfg.SourceDir, "run001.tar.gz")); err != nil {
		t.Errorf("source archive mutated: %v", err)
	}
}

func TestRun_LooseDataFiles(t *testing.T) {
	cfg := testConfig(t, okRenderer)
	writeRunArchive(t, cfg, "flat.tar.gz", "")

	stats, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Succeeded != 1 {
		t.Errorf("stats = %+v, want success via work-dir fallback target", stats)
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputDir, "flat.mp4")); err != nil {
		t.Errorf("output artifact missing: %v", err)
	}
	if left := dirEntries(t, cfg.WorkDir); len(left) != 0 {
		t.Errorf("work dir not empty after run: %v", left)
	}
}

func TestRun_CorruptArchive(t *testing.T) {
	cfg := testConfig(t, okRenderer)
	bad := filepath.Join(cfg.SourceDir, "badrun.tar.gz")
	if err := os.WriteFile(bad, []byte("not an archive at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	stats, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Total != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v, want failed=1", stats)
	}
	if stats.ExitCode() != 1 {
		t.Errorf("ExitCode = %d, want 1", stats.ExitCode())
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputDir, "badrun.mp4")); !os.IsNotExist(err) {
		t.Error("no artifact should exist for failed archive")
	}
	if left := dirEntries(t, cfg.WorkDir); len(left) != 0 {
		t.Errorf("staged copy not removed after extract failure: %v", left)
	}
}

func TestRun_RenderFailureStillCleansUp(t *testing.T) {
	cfg := testConfig(t, failRenderer)
	writeRunArchive(t, cfg, "run001.tar.gz", "run001")

	stats, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Failed != 1 || stats.Succeeded != 0 {
		t.Errorf("stats = %+v, want failed=1", stats)
	}
	if left := dirEntries(t, cfg.WorkDir); len(left) != 0 {
		t.Errorf("cleanup skipped after render failure: %v", left)
	}
}

func TestRun_FailureDoesNotAbortBatch(t *testing.T) {
	cfg := testConfig(t, okRenderer)
	if err := os.WriteFile(filepath.Join(cfg.SourceDir, "aaa_bad.tar.gz"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeRunArchive(t, cfg, "zzz_good.tar.gz", "zzz_good")

	stats, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Total != 2 || stats.Succeeded != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v, want 2 total, 1 succeeded, 1 failed", stats)
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputDir, "zzz_good.mp4")); err != nil {
		t.Errorf("later archive not processed after earlier failure: %v", err)
	}
}

func TestRun_MissingRendererIsFatal(t *testing.T) {
	cfg := testConfig(t, okRenderer)
	cfg.Renderer.Path = filepath.Join(cfg.WorkDir, "nope")

	if _, err := Run(context.Background(), cfg); err == nil {
		t.Error("expected fatal error for missing renderer")
	}
}

func TestRun_MissingSourceIsFatal(t *testing.T) {
	cfg := testConfig(t, okRenderer)
	if err := os.RemoveAll(cfg.SourceDir); err != nil {
		t.Fatal(err)
	}

	if _, err := Run(context.Background(), cfg); err == nil {
		t.Error("expected fatal error for unreadable source dir")
	}
}

func TestRun_PurgesStaleWorkDir(t *testing.T) {
	cfg := testConfig(t, okRenderer)
	writeRunArchive(t, cfg, "run001.tar.gz", "run001")

	if err := os.MkdirAll(filepath.Join(cfg.WorkDir, "leftover"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfg.WorkDir, "stale.tar.gz"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	stats, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Succeeded != 1 {
		t.Errorf("stats = %+v, want success despite stale state", stats)
	}
	if left := dirEntries(t, cfg.WorkDir); len(left) != 0 {
		t.Errorf("stale entries survived: %v", left)
	}
}

func TestPurgeStale_SparesNestedOutputDir(t *testing.T) {
	work := t.TempDir()
	out := filepath.Join(work, "movies")
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(out, "old.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(work, "stale.tar.gz"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	PurgeStale(work, out)

	if _, err := os.Stat(filepath.Join(out, "old.mp4")); err != nil {
		t.Errorf("nested output dir was purged: %v", err)
	}
	if _, err := os.Stat(filepath.Join(work, "stale.tar.gz")); !os.IsNotExist(err) {
		t.Error("stale entry survived purge")
	}
}
