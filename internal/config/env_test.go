package config

import "testing"

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.SourceDir != "archives" {
		t.Errorf("SourceDir = %q, want %q", cfg.SourceDir, "archives")
	}
	if cfg.WorkDir != "work" {
		t.Errorf("WorkDir = %q, want %q", cfg.WorkDir, "work")
	}
	if cfg.OutputDir != "movies" {
		t.Errorf("OutputDir = %q, want %q", cfg.OutputDir, "movies")
	}
	if cfg.Renderer.FPS != 10 {
		t.Errorf("Renderer.FPS = %d, want 10", cfg.Renderer.FPS)
	}
	if cfg.Renderer.VideoExt != ".mp4" {
		t.Errorf("Renderer.VideoExt = %q, want %q", cfg.Renderer.VideoExt, ".mp4")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("SOURCE_DIR", "/data/incoming")
	t.Setenv("RENDER_FPS", "24")
	t.Setenv("VIDEO_EXT", ".webm")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := FromEnv()

	if cfg.SourceDir != "/data/incoming" {
		t.Errorf("SourceDir = %q, want %q", cfg.SourceDir, "/data/incoming")
	}
	if cfg.Renderer.FPS != 24 {
		t.Errorf("Renderer.FPS = %d, want 24", cfg.Renderer.FPS)
	}
	if cfg.Renderer.VideoExt != ".webm" {
		t.Errorf("Renderer.VideoExt = %q, want %q", cfg.Renderer.VideoExt, ".webm")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestFromEnv_BadNumberFallsBack(t *testing.T) {
	t.Setenv("RENDER_FPS", "fast")

	cfg := FromEnv()
	if cfg.Renderer.FPS != 10 {
		t.Errorf("Renderer.FPS = %d, want default 10 on unparsable value", cfg.Renderer.FPS)
	}
}
