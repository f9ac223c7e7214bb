package sync

import (
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/sidkik/syncbox/pkg/errors"
)

// FileRecord describes a file in a synced directory.
type FileRecord struct {
	// Path is relative to the synced directory and uses forward slashes.
	Path string

	Size int64

	// ModTime is in milliseconds since the Unix epoch.
	ModTime int64
}

// NeedsUpdate returns whether a local copy last modified at `local` should
// be replaced by a copy advertised at `advertised`. A missing local file has
// a modification time of 0.
func NeedsUpdate(local, advertised int64) bool {
	return local < advertised
}

// ToMillis converts a time to the protocol's millisecond timestamps.
func ToMillis(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}

// FromMillis converts a protocol timestamp back to a time.
func FromMillis(ms int64) time.Time {
	return time.Unix(0, ms*int64(time.Millisecond))
}

// CleanPath validates a relative path received from a peer and returns its
// canonical form. Absolute paths and paths that escape the directory are
// rejected.
func CleanPath(relPath string) (string, error) {
	slashed := filepath.ToSlash(relPath)
	if slashed == "" || strings.HasPrefix(slashed, "/") || filepath.IsAbs(relPath) {
		return "", errors.InvalidPath{Path: relPath}
	}

	cleaned := path.Clean(slashed)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.InvalidPath{Path: relPath}
	}
	return cleaned, nil
}

// IsHidden returns whether any component of `relPath` starts with a dot.
// Hidden files are never synced.
func IsHidden(relPath string) bool {
	for _, part := range strings.Split(filepath.ToSlash(relPath), "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
	}
	return false
}
