package refactor

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/qasimio/operon/internal/fileutil"
)

// applyEdits writes planned edits atomically. Files whose plan failed
// are skipped and reported together; err is non-nil when any file
// failed.
func applyEdits(repoRoot, what string, edits []FileEdit) error {
	var failures []string
	for _, edit := range edits {
		if edit.Err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", edit.Path, edit.Err))
			continue
		}
		if edit.Occurrences == 0 || edit.After == edit.Before {
			continue
		}
		abs := filepath.Join(repoRoot, filepath.FromSlash(edit.Path))
		if err := fileutil.WriteFileAtomic(abs, []byte(edit.After), 0644); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", edit.Path, err))
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("%s failed for %d file(s): %s", what, len(failures), strings.Join(failures, "; "))
	}
	return nil
}
