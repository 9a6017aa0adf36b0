package fileutil

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"lukechampine.com/blake3"

	"github.com/qasimio/operon/internal/ignore"
)

// HashBytes returns a short blake3 content hash.
func HashBytes(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])[:16]
}

func HashFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return HashBytes(content), nil
}

// TrackedFile is one enumerated repository file with its content hash.
type TrackedFile struct {
	Path    string
	Hash    string
	ModTime time.Time
}

// ScanTrackedFiles walks the repository and hashes every file whose
// extension is in exts, skipping ignored directories. Unreadable files
// are skipped rather than failing the whole scan.
func ScanTrackedFiles(rootPath string, exts []string, ignoreRules []string) ([]TrackedFile, error) {
	extSet := make(map[string]bool, len(exts))
	for _, ext := range exts {
		extSet[ext] = true
	}
	matcher := ignore.NewMatcher(ignoreRules)

	out := make([]TrackedFile, 0)
	err := filepath.Walk(rootPath, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(rootPath, path)
		if err != nil {
			return err
		}
		if matcher.ShouldIgnore(relPath, info.IsDir()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if !extSet[filepath.Ext(path)] {
			return nil
		}

		hash, err := HashFile(path)
		if err != nil {
			return nil
		}
		out = append(out, TrackedFile{
			Path:    filepath.ToSlash(relPath),
			Hash:    hash,
			ModTime: info.ModTime(),
		})
		return nil
	})

	return out, err
}
