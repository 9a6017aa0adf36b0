package docsgen

import (
	"fmt"
	"os"
	"strings"

	"github.com/qasimio/operon/internal/fileutil"
)

// Managed-block markers. Content between them is owned by the
// generator; everything outside is left alone on update.
const (
	ManagedBlockStart = "<!-- operon:managed:start -->"
	ManagedBlockEnd   = "<!-- operon:managed:end -->"
)

// UpsertManagedFile replaces (or appends) the managed block in path
// with body. Returns whether the file content changed.
func UpsertManagedFile(path, body string) (bool, error) {
	existing := ""
	if data, err := os.ReadFile(path); err == nil {
		existing = string(data)
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}

	managed := fmt.Sprintf("%s\n%s\n%s", ManagedBlockStart, strings.TrimSpace(body), ManagedBlockEnd)
	updated := UpsertManagedBlock(existing, managed)
	if updated == existing {
		return false, nil
	}
	if err := fileutil.WriteFileAtomic(path, []byte(updated), 0644); err != nil {
		return false, err
	}
	return true, nil
}

// UpsertManagedBlock splices managedContent over the existing managed
// region, or appends it after the existing text.
func UpsertManagedBlock(existing, managedContent string) string {
	if existing == "" {
		return managedContent + "\n"
	}

	start := strings.Index(existing, ManagedBlockStart)
	end := strings.Index(existing, ManagedBlockEnd)
	if start >= 0 && end >= start {
		end += len(ManagedBlockEnd)
		return fileutil.EnsureTrailingNewline(existing[:start] + managedContent + existing[end:])
	}

	return fileutil.EnsureTrailingNewline(existing) + "\n" + managedContent + "\n"
}

// ContainsManagedBlock reports whether path already carries a managed
// region.
func ContainsManagedBlock(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	text := string(data)
	return strings.Contains(text, ManagedBlockStart) && strings.Contains(text, ManagedBlockEnd)
}
