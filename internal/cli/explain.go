package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qasimio/operon/internal/fileutil"
	"github.com/qasimio/operon/internal/nav"
)

func RunExplain(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveWorkingDirectory()
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	g, _, err := loadGraph(rootPath)
	if err != nil {
		return err
	}

	if args[0] == "flow" {
		if len(args) != 2 {
			return fmt.Errorf("usage: operon explain flow <func>")
		}
		report, err := nav.Flow(rootPath, g, args[1])
		if err != nil {
			return err
		}
		if asJSON {
			return fileutil.PrintJSON(report)
		}
		fmt.Printf("flow for %s (%s)\n", report.Function, report.File)
		if len(report.Callees) == 0 {
			fmt.Println("  no calls")
			return nil
		}
		for _, callee := range report.Callees {
			if callee.Defined {
				fmt.Printf("  -> %s  %s:%d\n", callee.Name, callee.File, callee.Line)
			} else {
				fmt.Printf("  -> %s  (external)\n", callee.Name)
			}
		}
		return nil
	}

	if len(args) != 1 {
		return fmt.Errorf("usage: operon explain <symbol|file:line>")
	}
	report, err := nav.Explain(rootPath, g, args[0])
	if err != nil {
		return err
	}
	if asJSON {
		return fileutil.PrintJSON(report)
	}

	fmt.Printf("%s [%s] %s:%d-%d\n", report.Signature, report.Kind, report.File, report.Start, report.End)
	if report.Docstring != "" {
		fmt.Printf("  %s\n", strings.SplitN(report.Docstring, "\n", 2)[0])
	}
	if len(report.Callers) > 0 {
		fmt.Println("callers:")
		for _, site := range report.Callers {
			fmt.Printf("  %s:%d\n", site.File, site.Line)
		}
	}
	if report.Source != "" {
		fmt.Println()
		fmt.Println(report.Source)
	}
	return nil
}

func RunUsages(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveWorkingDirectory()
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	g, _, err := loadGraph(rootPath)
	if err != nil {
		return err
	}
	report, err := nav.Usages(g, args[0])
	if err != nil {
		return err
	}
	if asJSON {
		return fileutil.PrintJSON(report)
	}

	fmt.Printf("usages of %q\n", report.Symbol)
	for _, site := range report.Definitions {
		fmt.Printf("  def  %s:%d\n", site.File, site.Line)
	}
	for _, site := range report.Usages {
		fmt.Printf("  %-4s %s:%d\n", site.Kind, site.File, site.Line)
	}
	return nil
}
