package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qasimio/operon/internal/agent"
	"github.com/qasimio/operon/internal/approval"
	"github.com/qasimio/operon/internal/diff"
	"github.com/qasimio/operon/internal/gitsafe"
	"github.com/qasimio/operon/internal/oracle"
	"github.com/qasimio/operon/internal/ui"
)

func RunAgent(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveWorkingDirectory()
	if err != nil {
		return err
	}
	headless, _ := cmd.Flags().GetBool("headless")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	verbose, _ := cmd.Flags().GetBool("verbose")
	goal := strings.TrimSpace(args[0])
	if goal == "" {
		return fmt.Errorf("goal must not be empty")
	}

	g, _, err := loadGraph(rootPath)
	if err != nil {
		return err
	}

	sink := ui.NewConsoleSink(os.Stderr, verbose)
	oracleClient := oracle.NewClient(rootPath, sink)

	if dryRun {
		plan, err := agent.Plan(cmd.Context(), goal, rootPath, g, oracleClient)
		if err != nil {
			return err
		}
		fmt.Printf("plan for %q:\n", goal)
		for i, step := range plan {
			fmt.Printf("  %d. %s (%s, rule %s)\n", i+1, step.Description, step.File, step.Rule.Kind)
		}
		return nil
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var opts []approval.Option
	if headless {
		opts = append(opts, approval.WithAutoApprove())
	}
	gate := approval.NewGate(sink, opts...)
	if !headless {
		go answerApprovals(ctx, gate)
	}

	sidecar, err := gitsafe.Begin(rootPath, sink)
	if err != nil {
		return err
	}

	orch := agent.New(rootPath, g, oracleClient, gate, sink, sidecar)
	result, err := orch.Run(ctx, goal)
	if err != nil {
		return err
	}
	if result.Cancelled {
		return exitErr(ExitCancel, fmt.Errorf("cancelled"))
	}

	fmt.Printf("%s: %s (%d tool calls)\n", result.Phase, result.Reason, result.Steps)
	for _, file := range result.FilesModified {
		fmt.Printf("  modified %s\n", file)
	}
	if result.Phase != agent.PhaseDone {
		return exitErr(ExitApply, fmt.Errorf("%s", result.Reason))
	}

	// Edits landed; refresh the graph so follow-up queries see them.
	return reindexAfterEdit(rootPath)
}

// answerApprovals is the interactive responder side of the gate: show
// each proposed edit, read y/n from stdin.
func answerApprovals(ctx context.Context, gate *approval.Gate) {
	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-gate.Requests():
			if !ok {
				return
			}
			fmt.Printf("\n--- proposed %s on %s ---\n", req.Action, req.Payload.File)
			if req.Payload.Summary != "" {
				fmt.Printf("step: %s\n", req.Payload.Summary)
			}
			fmt.Println(diff.Unified(req.Payload.File, req.Payload.Search, req.Payload.Replace))
			fmt.Print("apply this edit? [y/N] ")

			answer, err := reader.ReadString('\n')
			if err != nil {
				req.Respond(approval.Rejected)
				continue
			}
			if strings.EqualFold(strings.TrimSpace(answer), "y") {
				req.Respond(approval.Approved)
			} else {
				req.Respond(approval.Rejected)
			}
		}
	}
}
