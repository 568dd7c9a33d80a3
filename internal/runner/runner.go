// Package runner drives the external notebook/script execution engine.
//
// The engine is consumed, not reimplemented: analysis runs through a
// parameterized notebook executor (papermill) and AutoML/inference run
// through tools in the runner's python environment. Two backends exist:
// local process execution and per-run Docker containers.
package runner

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Tool names understood by the runner environment.
const (
	ToolAutoMLSearch = "automl_search"
	ToolPredict      = "predict"
)

// NotebookRequest describes one parameterized notebook execution.
type NotebookRequest struct {
	// TemplatePath is the notebook to execute.
	TemplatePath string
	// OutputPath receives the executed notebook.
	OutputPath string
	// Parameters are injected into the notebook's parameters cell.
	Parameters map[string]string
}

// Engine executes notebooks and runner tools.
type Engine interface {
	// ExecuteNotebook runs a notebook template with injected parameters.
	ExecuteNotebook(ctx context.Context, req NotebookRequest) error

	// RunTool runs a named tool from the runner environment with flag-style
	// arguments.
	RunTool(ctx context.Context, tool string, args []string) error

	// Name identifies the backend ("local" or "docker").
	Name() string
}

// ExecError carries the captured output of a failed execution so the
// failure cause lands in the job record.
type ExecError struct {
	Op     string
	Err    error
	Output string
}

func (e *ExecError) Error() string {
	tail := outputTail(e.Output, 2000)
	if tail == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Err, tail)
}

func (e *ExecError) Unwrap() error { return e.Err }

// outputTail returns the last n bytes of output, trimmed, so error messages
// carry the relevant stderr without flooding the record.
func outputTail(out string, n int) string {
	out = strings.TrimSpace(out)
	if len(out) > n {
		out = "..." + out[len(out)-n:]
	}
	return out
}

// notebookArgs turns a NotebookRequest into papermill CLI arguments.
func notebookArgs(req NotebookRequest) []string {
	args := []string{req.TemplatePath, req.OutputPath}
	for _, k := range sortedKeys(req.Parameters) {
		args = append(args, "-p", k, req.Parameters[k])
	}
	return args
}

// toolArgs turns a tool invocation into python CLI arguments.
func toolArgs(tool string, args []string) []string {
	return append([]string{"-m", "dataspect_runner." + tool}, args...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
