package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qasimio/operon/internal/fileutil"
	"github.com/qasimio/operon/internal/graph"
	"github.com/qasimio/operon/internal/nav"
)

// Exit codes used across the command surface.
const (
	ExitOK       = 0
	ExitInternal = 1
	ExitMiss     = 2
	ExitApply    = 3
	ExitCancel   = 130
)

// CodedError carries the process exit code for a command failure.
type CodedError struct {
	Code int
	Err  error
}

func (e *CodedError) Error() string { return e.Err.Error() }
func (e *CodedError) Unwrap() error { return e.Err }

func exitErr(code int, err error) error {
	return &CodedError{Code: code, Err: err}
}

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	var miss *nav.ErrNotFound
	if errors.As(err, &miss) {
		return ExitMiss
	}
	return ExitInternal
}

func resolveWorkingDirectory() (string, error) {
	rootPath, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return rootPath, nil
}

// LoadIgnoreRules reads user rules from .operonignore, when present.
func LoadIgnoreRules(rootPath string) ([]string, error) {
	f, err := os.Open(filepath.Join(rootPath, ".operonignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read .operonignore: %w", err)
	}
	defer f.Close()

	rules := make([]string, 0)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			rules = append(rules, line)
		}
	}
	return fileutil.DedupeStrings(rules), scanner.Err()
}

// loadGraph returns the persisted graph, building it when absent.
func loadGraph(rootPath string) (*graph.Graph, *graph.Builder, error) {
	ignoreRules, err := LoadIgnoreRules(rootPath)
	if err != nil {
		return nil, nil, err
	}
	builder := graph.NewBuilder(rootPath)
	builder.IgnoreRules = ignoreRules

	g, err := builder.LoadOrBuild()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load symbol graph: %w", err)
	}
	return g, builder, nil
}
