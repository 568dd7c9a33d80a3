package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotebookArgs_ParametersAreOrdered(t *testing.T) {
	req := NotebookRequest{
		TemplatePath: "/nb/preprocessing.ipynb",
		OutputPath:   "/out/run.ipynb",
		Parameters: map[string]string{
			"summary_file": "/out/s.json",
			"input_file":   "/in/data.csv",
			"output_image": "/static/h.png",
		},
	}

	args := notebookArgs(req)
	assert.Equal(t, []string{
		"/nb/preprocessing.ipynb", "/out/run.ipynb",
		"-p", "input_file", "/in/data.csv",
		"-p", "output_image", "/static/h.png",
		"-p", "summary_file", "/out/s.json",
	}, args)
}

func TestToolArgs(t *testing.T) {
	args := toolArgs(ToolAutoMLSearch, []string{"--metric", "rmse"})
	assert.Equal(t, []string{"-m", "dataspect_runner.automl_search", "--metric", "rmse"}, args)
}

func TestExecError_IncludesOutputTail(t *testing.T) {
	err := &ExecError{
		Op:     "notebook execution",
		Err:    errors.New("exit status 1"),
		Output: "Traceback (most recent call last):\nValueError: bad column",
	}
	assert.Contains(t, err.Error(), "notebook execution")
	assert.Contains(t, err.Error(), "ValueError: bad column")

	long := &ExecError{Op: "x", Err: errors.New("boom"), Output: strings.Repeat("a", 5000)}
	assert.Less(t, len(long.Error()), 2200)
}

func TestLocalEngine_TimeoutBoundsExecution(t *testing.T) {
	// A "notebook" that never finishes: sh executes the template file as
	// a script and exec replaces it with sleep so the kill lands directly.
	dir := t.TempDir()
	slow := filepath.Join(dir, "slow.ipynb")
	require.NoError(t, os.WriteFile(slow, []byte("exec sleep 30\n"), 0o755))

	e := NewLocalEngine(LocalConfig{Papermill: "/bin/sh", Timeout: 100 * time.Millisecond})

	start := time.Now()
	err := e.ExecuteNotebook(context.Background(), NotebookRequest{
		TemplatePath: slow,
		OutputPath:   filepath.Join(dir, "out.ipynb"),
	})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)

	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "notebook execution", execErr.Op)
	assert.Contains(t, err.Error(), "timed out after 100ms")
}

func TestLocalEngine_ZeroTimeoutLeavesContextAlone(t *testing.T) {
	e := NewLocalEngine(LocalConfig{Papermill: "/bin/true"})

	err := e.ExecuteNotebook(context.Background(), NotebookRequest{
		TemplatePath: "a.ipynb",
		OutputPath:   "b.ipynb",
	})
	require.NoError(t, err)
}

func TestLocalEngine_ReportsCommandFailure(t *testing.T) {
	e := NewLocalEngine(LocalConfig{Papermill: "/nonexistent/papermill-bin"})

	err := e.ExecuteNotebook(context.Background(), NotebookRequest{
		TemplatePath: "a.ipynb",
		OutputPath:   "b.ipynb",
	})
	require.Error(t, err)
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "notebook execution", execErr.Op)
}
