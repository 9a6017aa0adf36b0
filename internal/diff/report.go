package diff

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/qasimio/operon/internal/fileutil"
)

// ReportFile is the last applied diff payload, relative to the repo
// root. Kept for user-visible reporting only; rollback never reads it.
const ReportFile = ".operon/last_diff.json"

// Report captures the most recent applied edit.
type Report struct {
	File      string    `json:"file"`
	Search    string    `json:"search"`
	Replace   string    `json:"replace"`
	Reason    Reason    `json:"reason"`
	Unified   string    `json:"unified_diff"`
	AppliedAt time.Time `json:"applied_at"`
}

// Unified renders a unified diff between two versions of a file.
func Unified(file, before, after string) string {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + file,
		ToFile:   "b/" + file,
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return text
}

// WriteReport persists the last-diff document atomically.
func WriteReport(repoRoot string, r Report) error {
	r.AppliedAt = time.Now()
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(repoRoot, filepath.FromSlash(ReportFile))
	return fileutil.WriteFileAtomic(path, data, 0644)
}

// LoadReport reads the last-diff document; ok is false when absent or
// unreadable.
func LoadReport(repoRoot string) (Report, bool) {
	data, err := os.ReadFile(filepath.Join(repoRoot, filepath.FromSlash(ReportFile)))
	if err != nil {
		return Report{}, false
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, false
	}
	return r, true
}
