package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qasimio/operon/internal/fileutil"
	"github.com/qasimio/operon/internal/refactor"
)

func RunRename(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveWorkingDirectory()
	if err != nil {
		return err
	}
	apply, _ := cmd.Flags().GetBool("apply")
	asJSON, _ := cmd.Flags().GetBool("json")

	g, _, err := loadGraph(rootPath)
	if err != nil {
		return err
	}

	renamer := refactor.NewRenamer(rootPath, g)
	edits, err := renamer.Plan(args[0], args[1])
	if err != nil {
		return exitErr(ExitApply, err)
	}

	if err := printEditPlan(edits, apply, asJSON); err != nil {
		return err
	}
	if !apply {
		return nil
	}
	if err := renamer.Apply(edits); err != nil {
		return exitErr(ExitApply, err)
	}
	return reindexAfterEdit(rootPath)
}

func RunSignature(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveWorkingDirectory()
	if err != nil {
		return err
	}
	apply, _ := cmd.Flags().GetBool("apply")
	asJSON, _ := cmd.Flags().GetBool("json")

	g, _, err := loadGraph(rootPath)
	if err != nil {
		return err
	}

	migrator := refactor.NewMigrator(rootPath, g)
	edits, err := migrator.Plan(args[0], refactor.ParseParams(args[1]))
	if err != nil {
		return exitErr(ExitApply, err)
	}

	if err := printEditPlan(edits, apply, asJSON); err != nil {
		return err
	}
	if !apply {
		return nil
	}
	if err := migrator.Apply(edits); err != nil {
		return exitErr(ExitApply, err)
	}
	return reindexAfterEdit(rootPath)
}

func printEditPlan(edits []refactor.FileEdit, applied, asJSON bool) error {
	if asJSON {
		type planEntry struct {
			Path        string `json:"path"`
			Occurrences int    `json:"occurrences"`
			Error       string `json:"error,omitempty"`
		}
		plan := make([]planEntry, 0, len(edits))
		for _, edit := range edits {
			entry := planEntry{Path: edit.Path, Occurrences: edit.Occurrences}
			if edit.Err != nil {
				entry.Error = edit.Err.Error()
			}
			plan = append(plan, entry)
		}
		return fileutil.PrintJSON(map[string]any{"applied": applied, "edits": plan})
	}

	total := 0
	for _, edit := range edits {
		if edit.Err != nil {
			fmt.Printf("  %s: error: %v\n", edit.Path, edit.Err)
			continue
		}
		if edit.Occurrences == 0 {
			continue
		}
		fmt.Printf("  %s: %d occurrence(s)\n", edit.Path, edit.Occurrences)
		total += edit.Occurrences
	}
	if applied {
		fmt.Printf("applied %d change(s)\n", total)
	} else {
		fmt.Printf("dry run: %d change(s); re-run with --apply to write\n", total)
	}
	return nil
}

// reindexAfterEdit keeps the graph current after a bulk rewrite.
func reindexAfterEdit(rootPath string) error {
	_, builder, err := loadGraph(rootPath)
	if err != nil {
		return err
	}
	if _, _, err := builder.Build(true); err != nil {
		return fmt.Errorf("reindex after edit failed: %w", err)
	}
	return nil
}
