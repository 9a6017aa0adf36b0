package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "operon",
		Short: "Local code intelligence with a guarded edit agent",
		Long: `Operon keeps a persistent symbol graph of your repository and answers
navigation queries from it (explain, usages, flow). On top of the graph
it runs a guarded edit agent: every proposed change passes a fuzzy
search/replace engine, a syntax check, and an approval gate before it
touches disk, with version-controlled rollback if the run fails.

State lives under .operon/ and can be version-controlled.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	indexCmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Build or refresh the symbol graph",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunIndex,
	}
	indexCmd.Flags().Bool("full", false, "Re-extract every file instead of only changed ones")
	indexCmd.Flags().Bool("json", false, "Print machine-readable build summary")

	explainCmd := &cobra.Command{
		Use:   "explain <symbol|file:line> | explain flow <func>",
		Short: "Show a symbol's definition, signature, docstring, and callers",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  RunExplain,
	}
	explainCmd.Flags().Bool("json", false, "Print machine-readable explain result")

	usagesCmd := &cobra.Command{
		Use:   "usages <symbol>",
		Short: "List every usage site of a symbol",
		Args:  cobra.ExactArgs(1),
		RunE:  RunUsages,
	}
	usagesCmd.Flags().Bool("json", false, "Print machine-readable usage sites")

	searchCmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Find a literal string in tracked files",
		Args:  cobra.ExactArgs(1),
		RunE:  RunSearch,
	}
	searchCmd.Flags().Bool("json", false, "Print machine-readable hits")
	searchCmd.Flags().Int("limit", 50, "Maximum number of hits (0 for all)")

	renameCmd := &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a symbol across the repository (dry-run by default)",
		Args:  cobra.ExactArgs(2),
		RunE:  RunRename,
	}
	renameCmd.Flags().Bool("apply", false, "Write the rename instead of printing the plan")
	renameCmd.Flags().Bool("json", false, "Print machine-readable edit plan")

	signatureCmd := &cobra.Command{
		Use:   "signature <func> <params>",
		Short: "Change a function signature and update positional call sites",
		Args:  cobra.ExactArgs(2),
		RunE:  RunSignature,
	}
	signatureCmd.Flags().Bool("apply", false, "Write the migration instead of printing the plan")
	signatureCmd.Flags().Bool("json", false, "Print machine-readable edit plan")

	docsCmd := &cobra.Command{
		Use:   "docs <file>",
		Short: "Write per-symbol documentation into a managed markdown block",
		Args:  cobra.ExactArgs(1),
		RunE:  RunDocs,
	}
	docsCmd.Flags().Bool("no-llm", false, "Structural summaries only, never consult the model")
	docsCmd.Flags().String("out", "", "Output markdown path (default docs/<file>.md)")

	summarizeCmd := &cobra.Command{
		Use:   "summarize <file>",
		Short: "Print per-symbol summaries for a file",
		Args:  cobra.ExactArgs(1),
		RunE:  RunSummarize,
	}
	summarizeCmd.Flags().Bool("no-llm", false, "Structural summaries only, never consult the model")
	summarizeCmd.Flags().Bool("json", false, "Print machine-readable summaries")

	runCmd := &cobra.Command{
		Use:   "run <goal>",
		Short: "Run the edit agent against a goal",
		Args:  cobra.ExactArgs(1),
		RunE:  RunAgent,
	}
	runCmd.Flags().Bool("headless", false, "Auto-approve edits (still logged)")
	runCmd.Flags().Bool("dry-run", false, "Plan only, make no edits")
	runCmd.Flags().Bool("verbose", false, "Timestamped event log")

	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Show the last applied diff",
		Args:  cobra.NoArgs,
		RunE:  RunDump,
	}
	dumpCmd.Flags().Bool("json", false, "Print the raw last-diff document")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("operon %s\n", version)
		},
	}

	rootCmd.AddCommand(
		indexCmd,
		explainCmd,
		usagesCmd,
		searchCmd,
		renameCmd,
		signatureCmd,
		docsCmd,
		summarizeCmd,
		runCmd,
		dumpCmd,
		versionCmd,
	)

	return rootCmd
}

// Execute runs the command tree and returns the process exit code.
func Execute(version string) int {
	err := NewRootCommand(version).Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return ExitCode(err)
}
