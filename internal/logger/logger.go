package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options defines logger initialization parameters.
type Options struct {
	Level     string
	Pretty    bool
	File      string
	ErrorFile string
	RunID     string
}

var global zerolog.Logger

// Init sets up the global logger: stdout, the run log file, and an
// optional separate error log. Both files are truncated so each file
// holds exactly one run's transcript.
func Init(opts Options) error {
	var writers []io.Writer

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return fmt.Errorf("create logs dir: %w", err)
		}
		if err := truncate(opts.File); err != nil {
			return fmt.Errorf("reset run log: %w", err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename: opts.File,
			MaxSize:  500,
		})
	}

	if opts.ErrorFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.ErrorFile), 0o755); err != nil {
			return fmt.Errorf("create logs dir: %w", err)
		}
		if err := truncate(opts.ErrorFile); err != nil {
			return fmt.Errorf("reset error log: %w", err)
		}
		writers = append(writers, &errorWriter{file: &lumberjack.Logger{
			Filename: opts.ErrorFile,
			MaxSize:  100,
		}})
	}

	if opts.Pretty {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		writers = append(writers, os.Stdout)
	}

	out := zerolog.MultiLevelWriter(writers...)

	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	ctx := zerolog.New(out).Level(lvl).With().Timestamp()
	if opts.RunID != "" {
		ctx = ctx.Str("run_id", opts.RunID)
	}
	global = ctx.Logger()
	log.Logger = global
	return nil
}

// Get returns the global logger.
func Get() *zerolog.Logger { return &global }

func truncate(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// errorWriter forwards error-level (and above) lines to a second sink so
// the error log stays a strict subset of the run log.
type errorWriter struct {
	file io.Writer
}

func (w *errorWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

func (w *errorWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < zerolog.ErrorLevel {
		return len(p), nil
	}
	return w.file.Write(p)
}
