package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qasimio/operon/internal/diff"
	"github.com/qasimio/operon/internal/fileutil"
)

func RunDump(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveWorkingDirectory()
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	report, ok := diff.LoadReport(rootPath)
	if !ok {
		fmt.Println("no diff recorded")
		return nil
	}
	if asJSON {
		return fileutil.PrintJSON(report)
	}

	fmt.Printf("last diff: %s (%s) at %s\n", report.File, report.Reason,
		report.AppliedAt.Format("2006-01-02 15:04:05"))
	if report.Unified != "" {
		fmt.Println(report.Unified)
		return nil
	}
	fmt.Println("<<<<<<< SEARCH")
	fmt.Print(report.Search)
	fmt.Println("=======")
	fmt.Print(report.Replace)
	fmt.Println(">>>>>>> REPLACE")
	return nil
}
