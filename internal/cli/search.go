package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qasimio/operon/internal/fileutil"
	"github.com/qasimio/operon/internal/nav"
	"github.com/qasimio/operon/internal/search"
)

func RunSearch(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveWorkingDirectory()
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	limit, _ := cmd.Flags().GetInt("limit")

	g, _, err := loadGraph(rootPath)
	if err != nil {
		return err
	}

	hits := search.Exact(rootPath, g, args[0], limit)
	if len(hits) == 0 {
		return &nav.ErrNotFound{Query: args[0]}
	}
	if asJSON {
		return fileutil.PrintJSON(hits)
	}
	for _, hit := range hits {
		fmt.Printf("%s:%d: %s\n", hit.File, hit.Line, hit.Text)
	}
	return nil
}
