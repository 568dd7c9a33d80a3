package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// LocalEngine executes the runner directly on the host: papermill for
// notebooks and the runner python environment for tools.
type LocalEngine struct {
	papermill string
	python    string
	timeout   time.Duration
	logger    *slog.Logger
}

// LocalConfig configures a LocalEngine.
type LocalConfig struct {
	Papermill string        // papermill binary (default "papermill")
	Python    string        // python interpreter (default "python3")
	Timeout   time.Duration // per-execution wall-clock cap; zero means unbounded
	Logger    *slog.Logger
}

// NewLocalEngine creates a local execution engine.
func NewLocalEngine(cfg LocalConfig) *LocalEngine {
	if cfg.Papermill == "" {
		cfg.Papermill = "papermill"
	}
	if cfg.Python == "" {
		cfg.Python = "python3"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalEngine{
		papermill: cfg.Papermill,
		python:    cfg.Python,
		timeout:   cfg.Timeout,
		logger:    logger.With("component", "runner", "backend", "local"),
	}
}

// Name identifies the backend.
func (e *LocalEngine) Name() string { return "local" }

// ExecuteNotebook runs papermill with the request's parameters.
func (e *LocalEngine) ExecuteNotebook(ctx context.Context, req NotebookRequest) error {
	args := notebookArgs(req)
	e.logger.Info("executing notebook", "template", req.TemplatePath, "output", req.OutputPath)
	return e.run(ctx, "notebook execution", e.papermill, args)
}

// RunTool runs a tool module from the runner environment.
func (e *LocalEngine) RunTool(ctx context.Context, tool string, args []string) error {
	e.logger.Info("running tool", "tool", tool)
	return e.run(ctx, fmt.Sprintf("tool %s", tool), e.python, toolArgs(tool, args))
}

func (e *LocalEngine) run(ctx context.Context, op, bin string, args []string) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.WaitDelay = 5 * time.Second
	out, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &ExecError{Op: op, Err: fmt.Errorf("timed out after %s", e.timeout), Output: string(out)}
		}
		if ctx.Err() != nil {
			return &ExecError{Op: op, Err: ctx.Err(), Output: string(out)}
		}
		return &ExecError{Op: op, Err: err, Output: string(out)}
	}
	return nil
}
