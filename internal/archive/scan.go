// Package archive handles enumeration, naming, and extraction of
// compressed simulation snapshot archives.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Supported archive suffixes, checked longest-first so Identity strips
// ".tar.gz" before ".gz" could ever match.
var suffixes = []string{".tar.gz", ".tgz", ".tar", ".zip"}

// Archive is one compressed snapshot set found in the source directory.
type Archive struct {
	Path     string // absolute or source-relative path to the archive
	Name     string // base filename including suffix
	Identity string // base filename minus compression suffix
}

// Scan lists matching archives among the immediate children of
// sourceDir. The walk is non-recursive; subdirectories are ignored.
// Entries come back in ReadDir's name order.
func Scan(sourceDir string) ([]Archive, error) {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("read source dir: %w", err)
	}

	var found []Archive
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		id, ok := Identity(name)
		if !ok {
			continue
		}
		found = append(found, Archive{
			Path:     filepath.Join(sourceDir, name),
			Name:     name,
			Identity: id,
		})
	}
	return found, nil
}

// Identity strips the compression suffix from an archive filename and
// reports whether the name matched a supported suffix at all.
func Identity(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s) && len(name) > len(s) {
			return name[:len(name)-len(s)], true
		}
	}
	return "", false
}
