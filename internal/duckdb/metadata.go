package duckdb

import (
	"os"
	"path/filepath"
	"time"
)

// FileFingerprint holds stat-based identity for an input file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file. The path is made
// absolute so runs from different working directories compare equal.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Matches reports whether two fingerprints describe the same file contents.
func (f FileFingerprint) Matches(other FileFingerprint) bool {
	return f.Path == other.Path && f.Size == other.Size && f.ModTime.Equal(other.ModTime)
}
