package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level     string
	Pretty    bool
	File      string
	ErrorFile string
}

// RendererConfig defines the external rendering tool and its fixed parameters.
type RendererConfig struct {
	Path     string
	FPS      int
	VideoExt string
}

// Config is the top-level configuration. All locations are fixed for the
// lifetime of one run; the pipeline receives this record explicitly.
type Config struct {
	SourceDir   string
	WorkDir     string
	OutputDir   string
	Renderer    RendererConfig
	Logging     LoggingConfig
	MetricsFile string
}

// FromEnv loads configuration from a .env file (if present) and the
// environment, with sensible defaults.
func FromEnv() Config {
	_ = godotenv.Load()

	cfg := Config{
		SourceDir:   getEnv("SOURCE_DIR", "archives"),
		WorkDir:     getEnv("WORK_DIR", "work"),
		OutputDir:   getEnv("OUTPUT_DIR", "movies"),
		MetricsFile: getEnv("METRICS_FILE", "logs/simbatch.prom"),
	}

	cfg.Renderer = RendererConfig{
		Path:     getEnv("RENDERER_PATH", "/usr/local/bin/simMovie"),
		FPS:      parseInt(getEnv("RENDER_FPS", "10"), 10),
		VideoExt: getEnv("VIDEO_EXT", ".mp4"),
	}

	cfg.Logging = LoggingConfig{
		Level:     getEnv("LOG_LEVEL", "info"),
		Pretty:    parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:      getEnv("LOG_FILE", "logs/simbatch.log"),
		ErrorFile: getEnv("ERROR_LOG_FILE", "logs/simbatch_errors.log"),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
