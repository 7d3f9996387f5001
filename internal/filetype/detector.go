package filetype

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Kind classifies an archive by its actual content.
type Kind int

const (
	KindUnknown Kind = iota
	KindTarGz        // gzip-compressed tarball (.tar.gz, .tgz)
	KindTar          // plain tarball
	KindZip
)

func (k Kind) String() string {
	switch k {
	case KindTarGz:
		return "tar.gz"
	case KindTar:
		return "tar"
	case KindZip:
		return "zip"
	default:
		return "unknown"
	}
}

// Detector identifies archives and simulation data files using magic
// bytes, not filenames.
type Detector struct{}

// New creates a new file type detector.
func New() *Detector {
	return &Detector{}
}

// DetectArchive detects the archive kind of the file at path.
func (d *Detector) DetectArchive(path string) (Kind, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return KindUnknown, fmt.Errorf("failed to detect file type: %w", err)
	}

	mime := mtype.String()
	log.Debug().Str("mime", mime).Str("file", path).Msg("detected file type")

	switch {
	case mime == "application/gzip" || mime == "application/x-gzip":
		// A gzip member could wrap anything; the pipeline only stages
		// tarballs, so cross-check the extension.
		lower := strings.ToLower(path)
		if !strings.HasSuffix(lower, ".tar.gz") && !strings.HasSuffix(lower, ".tgz") {
			log.Warn().Str("file", path).Msg("gzip file without tarball extension")
		}
		return KindTarGz, nil
	case mime == "application/x-tar":
		return KindTar, nil
	case mime == "application/zip" || strings.Contains(mime, "application/x-zip"):
		return KindZip, nil
	}

	return KindUnknown, nil
}

// IsDataFile reports whether path is a recognized simulation snapshot.
// Renderer input is HDF5; detection is by magic bytes with an extension
// fallback for empty placeholder files.
func (d *Detector) IsDataFile(path string) bool {
	mtype, err := mimetype.DetectFile(path)
	if err == nil && strings.HasPrefix(mtype.String(), "application/x-hdf") {
		return true
	}
	return strings.EqualFold(filepath.Ext(path), ".h5")
}
