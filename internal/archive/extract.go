package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog/log"

	"github.com/local/simbatch/internal/filetype"
)

// ErrNoTarget is returned when extraction produced no subdirectory and
// no recognized data file was deposited into the working directory.
var ErrNoTarget = errors.New("no extraction target found")

// Extraction records what one archive's unpack actually created, so the
// target is selected from known entries instead of rediscovered by
// scanning the working directory.
type Extraction struct {
	// Entries are the top-level paths created under the working
	// directory, in name order.
	Entries []string

	// Target is the selected extraction target after SelectTarget:
	// either a single created subdirectory or the working directory
	// itself when data files were deposited there directly.
	Target string

	// InWorkDir is true when Target is the working directory itself.
	InWorkDir bool
}

// Extract unpacks the staged archive copy in place within workDir and
// records the top-level entries it created. The staged copy itself is
// untouched; removing it is the pipeline's destage step.
func Extract(stagedPath, workDir string, det *filetype.Detector) (*Extraction, error) {
	kind, err := det.DetectArchive(stagedPath)
	if err != nil {
		return nil, err
	}

	var entries []string
	switch kind {
	case filetype.KindTarGz, filetype.KindTar:
		entries, err = untar(stagedPath, workDir, kind == filetype.KindTarGz)
	case filetype.KindZip:
		entries, err = unzip(stagedPath, workDir)
	default:
		return nil, fmt.Errorf("unsupported archive content in %s", filepath.Base(stagedPath))
	}
	if err != nil {
		return &Extraction{Entries: entries}, fmt.Errorf("extract %s: %w", filepath.Base(stagedPath), err)
	}

	return &Extraction{Entries: entries}, nil
}

// SelectTarget picks the extraction target from the recorded entries.
// One created subdirectory wins outright; several created subdirectories
// is ambiguous and the first is taken with a warning. With no
// subdirectory at all, the working directory itself is the target only
// if a recognized data file landed there.
func (e *Extraction) SelectTarget(workDir string, det *filetype.Detector) error {
	var dirs, files []string
	for _, p := range e.Entries {
		fi, err := os.Stat(p)
		if err != nil {
			continue
		}
		if fi.IsDir() {
			dirs = append(dirs, p)
		} else {
			files = append(files, p)
		}
	}

	if len(dirs) > 0 {
		if len(dirs) > 1 {
			log.Warn().Strs("ignored", dirs[1:]).Str("selected", dirs[0]).
				Msg("extraction created multiple subdirectories, taking the first")
		}
		e.Target = dirs[0]
		e.InWorkDir = false
		return nil
	}

	for _, f := range files {
		if det.IsDataFile(f) {
			e.Target = workDir
			e.InWorkDir = true
			return nil
		}
	}
	return ErrNoTarget
}

// Clean removes everything this extraction created: the target
// subdirectory, or the recorded loose entries when the target was the
// working directory itself. Best effort; all removal errors are joined.
func (e *Extraction) Clean() error {
	var errs []error
	if e.Target != "" && !e.InWorkDir {
		if err := os.RemoveAll(e.Target); err != nil {
			errs = append(errs, err)
		}
		for _, p := range e.Entries {
			if p == e.Target {
				continue
			}
			if err := os.RemoveAll(p); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	for _, p := range e.Entries {
		if err := os.RemoveAll(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// untar unpacks a (possibly gzip-compressed) tarball into workDir and
// returns the created top-level paths.
func untar(path, workDir string, gzipped bool) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if gzipped {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	top := newTopLevel(workDir)
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return top.paths(), fmt.Errorf("tar: %w", err)
		}

		dst, err := top.resolve(hdr.Name)
		if err != nil {
			return top.paths(), err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return top.paths(), err
			}
		case tar.TypeReg:
			if err := writeFile(dst, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return top.paths(), err
			}
		default:
			log.Debug().Str("entry", hdr.Name).Msg("skipping non-regular tar entry")
		}
	}
	return top.paths(), nil
}

// unzip unpacks a zip archive into workDir and returns the created
// top-level paths.
func unzip(path, workDir string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("zip: %w", err)
	}
	defer zr.Close()

	top := newTopLevel(workDir)
	for _, zf := range zr.File {
		dst, err := top.resolve(zf.Name)
		if err != nil {
			return top.paths(), err
		}

		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return top.paths(), err
			}
			continue
		}

		rc, err := zf.Open()
		if err != nil {
			return top.paths(), fmt.Errorf("zip entry %s: %w", zf.Name, err)
		}
		err = writeFile(dst, rc, zf.FileInfo().Mode().Perm())
		rc.Close()
		if err != nil {
			return top.paths(), err
		}
	}
	return top.paths(), nil
}

func writeFile(dst string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0o644
	}
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// topLevel tracks the distinct first path components an archive writes
// into the working directory.
type topLevel struct {
	workDir string
	seen    map[string]bool
	order   []string
}

func newTopLevel(workDir string) *topLevel {
	return &topLevel{workDir: workDir, seen: map[string]bool{}}
}

// resolve validates an archive entry name and returns its destination
// path, recording the top-level component. Absolute names and names
// escaping the working directory are rejected.
func (t *topLevel) resolve(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." || clean == "" {
		return t.workDir, nil
	}
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", fmt.Errorf("archive entry escapes working directory: %s", name)
	}

	first := clean
	if i := strings.IndexRune(clean, filepath.Separator); i >= 0 {
		first = clean[:i]
	}
	if !t.seen[first] {
		t.seen[first] = true
		t.order = append(t.order, filepath.Join(t.workDir, first))
	}
	return filepath.Join(t.workDir, clean), nil
}

func (t *topLevel) paths() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	sort.Strings(out)
	return out
}
