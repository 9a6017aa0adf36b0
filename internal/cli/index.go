package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/qasimio/operon/internal/fileutil"
	"github.com/qasimio/operon/internal/graph"
	"github.com/qasimio/operon/internal/state"
)

func RunIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()
	rootPath, err := resolveWorkingDirectory()
	if err != nil {
		return err
	}
	if len(args) == 1 {
		rootPath, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", args[0], err)
		}
	}
	full, _ := cmd.Flags().GetBool("full")
	asJSON, _ := cmd.Flags().GetBool("json")

	ignoreRules, err := LoadIgnoreRules(rootPath)
	if err != nil {
		return err
	}
	builder := graph.NewBuilder(rootPath)
	builder.IgnoreRules = ignoreRules

	g, stats, err := builder.Build(!full)
	if err != nil {
		return fmt.Errorf("failed to build symbol graph: %w", err)
	}

	if err := refreshIndexState(rootPath, g); err != nil {
		fmt.Fprintf(os.Stderr, "warning: index state not refreshed: %v\n", err)
	}

	if asJSON {
		return fileutil.PrintJSON(map[string]any{
			"files":      stats.Files,
			"symbols":    stats.Symbols,
			"reindexed":  stats.Reindexed,
			"removed":    stats.Removed,
			"elapsed_ms": time.Since(start).Milliseconds(),
		})
	}

	mode := "incremental"
	if full {
		mode = "full"
	}
	fmt.Printf("indexed %d files (%s): %d reindexed, %d removed, %d symbols in %s\n",
		stats.Files, mode, stats.Reindexed, stats.Removed, stats.Symbols,
		time.Since(start).Round(time.Millisecond))
	return nil
}

// refreshIndexState mirrors the graph's per-file hashes into the
// file-hash cache used for status reporting.
func refreshIndexState(rootPath string, g *graph.Graph) error {
	st, err := state.Load(rootPath)
	if err != nil {
		st = state.NewState()
	}

	current := make(map[string]bool, len(g.Files))
	for _, path := range g.Paths() {
		record := g.Files[path]
		current[path] = true
		if st.HasChanged(path, record.Hash) {
			st.SetFile(path, record.Hash, record.Language)
		}
	}
	for _, path := range st.DeletedFiles(current) {
		st.RemoveFile(path)
	}
	return st.Save(rootPath)
}
