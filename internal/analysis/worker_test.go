package analysis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataspect/dataspect/internal/home"
	"github.com/dataspect/dataspect/internal/jobstore"
	"github.com/dataspect/dataspect/internal/runner"
)

// stubEngine fakes the notebook runner: on success it writes the artifacts
// the notebook would produce.
type stubEngine struct {
	err          error
	skipArtifact bool
	calls        []runner.NotebookRequest
}

func (s *stubEngine) ExecuteNotebook(_ context.Context, req runner.NotebookRequest) error {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return s.err
	}
	if !s.skipArtifact {
		if err := os.WriteFile(req.Parameters["summary_file"], []byte(`{"cleaned_shape":[10,3]}`), 0o644); err != nil {
			return err
		}
		if err := os.WriteFile(req.Parameters["output_image"], []byte("png"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (s *stubEngine) RunTool(context.Context, string, []string) error { return nil }
func (s *stubEngine) Name() string                                    { return "stub" }

func setup(t *testing.T, engine runner.Engine) (*jobstore.Store, *home.Dir, *Worker, string) {
	t.Helper()
	h, err := home.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, h.EnsureExists())
	require.NoError(t, os.WriteFile(h.AnalysisTemplate(), []byte("{}"), 0o644))

	store := jobstore.New(nil)
	jobID := "job-1"
	input := h.UploadPath(jobID, "data.csv")
	require.NoError(t, os.WriteFile(input, []byte("a,b,c\n1,2,3\n"), 0o644))
	store.Create(jobstore.Record{ID: jobID, Type: jobstore.TypeAnalysis, Filename: "data.csv", Filepath: input})

	return store, h, NewWorker(store, h, engine, nil, nil), jobID
}

type stubEnricher struct {
	enr   Enrichment
	calls int
}

func (s *stubEnricher) Enrich(_ context.Context, _, _ string) Enrichment {
	s.calls++
	return s.enr
}

func TestWorker_EnrichmentOutcomeIsRecorded(t *testing.T) {
	engine := &stubEngine{}
	store, h, _, jobID := setup(t, engine)
	enricher := &stubEnricher{enr: Enrichment{
		InsightsFile: "/tmp/ins.json",
		Source:       "fallback",
		Reason:       "llm call failed: connection refused",
	}}
	w := NewWorker(store, h, engine, enricher, nil)

	w.Run(context.Background(), jobID)

	rec, err := store.Get(jobID)
	require.NoError(t, err)
	assert.Equal(t, jobstore.StatusCompleted, rec.Status)
	assert.Equal(t, 1, enricher.calls)
	assert.Equal(t, "/tmp/ins.json", rec.InsightsFile)
	assert.Equal(t, "fallback", rec.InsightsSource)
	assert.Contains(t, rec.InsightsReason, "connection refused")
}

func TestWorker_CompletesAndRecordsArtifacts(t *testing.T) {
	engine := &stubEngine{}
	store, h, w, jobID := setup(t, engine)

	w.Run(context.Background(), jobID)

	rec, err := store.Get(jobID)
	require.NoError(t, err)
	assert.Equal(t, jobstore.StatusCompleted, rec.Status)
	assert.Equal(t, 100, rec.Progress)
	assert.Equal(t, h.SummaryPath(jobID), rec.SummaryFile)
	assert.Equal(t, h.HistogramPath(jobID), rec.ImageFile)
	assert.FileExists(t, rec.SummaryFile)
	assert.FileExists(t, rec.ImageFile)

	require.Len(t, engine.calls, 1)
	assert.Equal(t, h.AnalysisTemplate(), engine.calls[0].TemplatePath)
	assert.Equal(t, jobID, engine.calls[0].Parameters["job_id"])
}

func TestWorker_FailsWhenInputMissing(t *testing.T) {
	engine := &stubEngine{}
	store, _, w, jobID := setup(t, engine)

	rec, _ := store.Get(jobID)
	require.NoError(t, os.Remove(rec.Filepath))

	w.Run(context.Background(), jobID)

	rec, _ = store.Get(jobID)
	assert.Equal(t, jobstore.StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "input file not found")
	assert.Empty(t, engine.calls, "runner must not be invoked for a missing input")
}

func TestWorker_FailsWhenInputEmpty(t *testing.T) {
	engine := &stubEngine{}
	store, _, w, jobID := setup(t, engine)

	rec, _ := store.Get(jobID)
	require.NoError(t, os.WriteFile(rec.Filepath, nil, 0o644))

	w.Run(context.Background(), jobID)

	rec, _ = store.Get(jobID)
	assert.Equal(t, jobstore.StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "empty")
}

func TestWorker_FailsWhenTemplateMissing(t *testing.T) {
	engine := &stubEngine{}
	store, h, w, jobID := setup(t, engine)
	require.NoError(t, os.Remove(h.AnalysisTemplate()))

	w.Run(context.Background(), jobID)

	rec, _ := store.Get(jobID)
	assert.Equal(t, jobstore.StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "template not found")
}

func TestWorker_SlowExecutionTimesOutAndFailsJob(t *testing.T) {
	// Real local engine with a tight execution cap; the template is a
	// script that never finishes on its own.
	engine := runner.NewLocalEngine(runner.LocalConfig{
		Papermill: "/bin/sh",
		Timeout:   100 * time.Millisecond,
	})
	store, h, w, jobID := setup(t, engine)
	require.NoError(t, os.WriteFile(h.AnalysisTemplate(), []byte("exec sleep 30\n"), 0o755))

	w.Run(context.Background(), jobID)

	rec, _ := store.Get(jobID)
	assert.Equal(t, jobstore.StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "timed out")
}

func TestWorker_ExecutionErrorIsCaptured(t *testing.T) {
	engine := &stubEngine{err: errors.New("kernel died")}
	store, _, w, jobID := setup(t, engine)

	w.Run(context.Background(), jobID)

	rec, _ := store.Get(jobID)
	assert.Equal(t, jobstore.StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "kernel died")
}

func TestWorker_MissingSummaryIsSilentFailure(t *testing.T) {
	engine := &stubEngine{skipArtifact: true}
	store, _, w, jobID := setup(t, engine)

	w.Run(context.Background(), jobID)

	rec, _ := store.Get(jobID)
	assert.Equal(t, jobstore.StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "summary file was not created")
}
