// Package renderer wraps the external simulation movie tool as a
// subprocess.
package renderer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Renderer invokes the external rendering executable. The tool's
// contract: read snapshot files from the given directory, write exactly
// one video file to the given output path, exit zero on success.
type Renderer struct {
	Path string
	FPS  int
}

// Result represents the outcome of one render invocation.
type Result struct {
	OutputPath string
	Duration   time.Duration
	Output     string
}

// New creates a renderer for the executable at path.
func New(path string, fps int) *Renderer {
	return &Renderer{Path: path, FPS: fps}
}

// Check verifies the rendering executable exists. Run as preflight; a
// missing renderer aborts the whole run.
func (r *Renderer) Check() error {
	fi, err := os.Stat(r.Path)
	if err != nil {
		return fmt.Errorf("renderer not found at %s: %w", r.Path, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("renderer path %s is a directory", r.Path)
	}
	return nil
}

// Args builds the command line for one invocation: positional data
// directory, then output path, frame rate, and the label shown on the
// movie's title card.
func (r *Renderer) Args(targetDir, outPath, label string) []string {
	return []string{
		targetDir,
		"--outfile", outPath,
		"--fps", strconv.Itoa(r.FPS),
		"--filename", label,
	}
}

// Render runs the rendering tool against targetDir, blocking until it
// exits. All subprocess output is captured into the run log: debug on
// success, error on failure.
func (r *Renderer) Render(ctx context.Context, targetDir, outPath, label string) (*Result, error) {
	args := r.Args(targetDir, outPath, label)
	log.Info().Str("renderer", r.Path).Strs("args", args).Msg("starting render")

	var buf bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Path, args...)
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		OutputPath: outPath,
		Duration:   time.Since(start),
		Output:     buf.String(),
	}

	if err != nil {
		logOutput(log.Error(), res.Output).Err(err).
			Dur("elapsed", res.Duration).Msg("render failed")
		return res, fmt.Errorf("render %s: %w", label, err)
	}

	logOutput(log.Info(), res.Output).
		Dur("elapsed", res.Duration).Str("output", outPath).Msg("render finished")
	return res, nil
}

func logOutput(ev *zerolog.Event, out string) *zerolog.Event {
	if s := strings.TrimSpace(out); s != "" {
		return ev.Str("renderer_output", s)
	}
	return ev
}
