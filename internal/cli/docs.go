package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qasimio/operon/internal/docsgen"
	"github.com/qasimio/operon/internal/fileutil"
	"github.com/qasimio/operon/internal/nav"
	"github.com/qasimio/operon/internal/oracle"
	"github.com/qasimio/operon/internal/resolve"
	"github.com/qasimio/operon/internal/ui"
)

func RunDocs(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveWorkingDirectory()
	if err != nil {
		return err
	}
	noLLM, _ := cmd.Flags().GetBool("no-llm")
	outPath, _ := cmd.Flags().GetString("out")

	gen, file, err := newGenerator(rootPath, args[0], noLLM)
	if err != nil {
		return err
	}
	if outPath == "" {
		base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		outPath = filepath.Join(rootPath, "docs", base+".md")
	}

	changed, err := gen.WriteDocs(cmd.Context(), file, outPath)
	if err != nil {
		return err
	}
	if changed {
		fmt.Printf("wrote %s\n", outPath)
	} else {
		fmt.Printf("%s already current\n", outPath)
	}
	return nil
}

func RunSummarize(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveWorkingDirectory()
	if err != nil {
		return err
	}
	noLLM, _ := cmd.Flags().GetBool("no-llm")
	asJSON, _ := cmd.Flags().GetBool("json")

	gen, file, err := newGenerator(rootPath, args[0], noLLM)
	if err != nil {
		return err
	}
	docs, err := gen.SummarizeFile(cmd.Context(), file)
	if err != nil {
		return err
	}
	if asJSON {
		return fileutil.PrintJSON(map[string]any{"file": file, "symbols": docs})
	}

	fmt.Printf("%s\n", file)
	for _, doc := range docs {
		cached := ""
		if doc.FromCache {
			cached = " (cached)"
		}
		fmt.Printf("  %s [%s] lines %d-%d%s\n", doc.Signature, doc.Kind, doc.Start, doc.End, cached)
		fmt.Printf("    %s\n", doc.Summary)
	}
	return nil
}

// newGenerator resolves the target file and builds a docs generator.
// The oracle is attached only when configured and not disabled.
func newGenerator(rootPath, userPath string, noLLM bool) (*docsgen.Generator, string, error) {
	g, _, err := loadGraph(rootPath)
	if err != nil {
		return nil, "", err
	}
	resolver := resolve.New(rootPath, g)
	file, found := resolver.Path(userPath)
	if !found {
		return nil, "", &nav.ErrNotFound{Query: userPath}
	}

	sink := ui.NewConsoleSink(os.Stderr, false)
	var o oracle.Oracle
	if !noLLM && oracle.LoadConfig(rootPath).APIKey != "" {
		o = oracle.NewClient(rootPath, sink)
	}
	return docsgen.NewGenerator(rootPath, g, o, sink), file, nil
}
