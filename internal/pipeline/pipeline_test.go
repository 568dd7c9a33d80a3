package pipeline

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataspect/dataspect/internal/analysis"
	"github.com/dataspect/dataspect/internal/automl"
	"github.com/dataspect/dataspect/internal/home"
	"github.com/dataspect/dataspect/internal/insights"
	"github.com/dataspect/dataspect/internal/jobstore"
	"github.com/dataspect/dataspect/internal/runner"
)

// blockingEngine parks notebook executions until the context is cancelled.
type blockingEngine struct {
	started chan struct{}
}

func (e *blockingEngine) ExecuteNotebook(ctx context.Context, _ runner.NotebookRequest) error {
	close(e.started)
	<-ctx.Done()
	return ctx.Err()
}

func (e *blockingEngine) RunTool(ctx context.Context, _ string, _ []string) error {
	return nil
}

func (e *blockingEngine) Name() string { return "blocking" }

func newLauncher(t *testing.T, engine runner.Engine) (*jobstore.Store, *home.Dir, *Launcher) {
	t.Helper()
	h, err := home.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, h.EnsureExists())
	require.NoError(t, os.WriteFile(h.AnalysisTemplate(), []byte("{}"), 0o644))

	store := jobstore.New(nil)
	aw := analysis.NewWorker(store, h, engine, nil, nil)
	mw := automl.NewWorker(store, h, engine, 0, nil)
	return store, h, New(store, aw, mw, nil)
}

func createJob(t *testing.T, store *jobstore.Store, h *home.Dir, jobID string) {
	t.Helper()
	input := h.UploadPath(jobID, "data.csv")
	require.NoError(t, os.WriteFile(input, []byte("a,b\n1,2\n"), 0o644))
	store.Create(jobstore.Record{ID: jobID, Type: jobstore.TypeAnalysis, Filename: "data.csv", Filepath: input})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestCancelRunningJob(t *testing.T) {
	engine := &blockingEngine{started: make(chan struct{})}
	store, h, l := newLauncher(t, engine)
	createJob(t, store, h, "job-1")

	l.StartAnalysis("job-1")
	<-engine.started
	assert.True(t, l.Running("job-1"))

	require.True(t, l.Cancel("job-1"))

	waitFor(t, func() bool {
		rec, err := store.Get("job-1")
		return err == nil && rec.Status == jobstore.StatusFailed
	})
	rec, _ := store.Get("job-1")
	assert.Contains(t, rec.Error, "cancel")

	waitFor(t, func() bool { return !l.Running("job-1") })
}

func TestCancelUnknownJob(t *testing.T) {
	_, _, l := newLauncher(t, &blockingEngine{started: make(chan struct{})})
	assert.False(t, l.Cancel("nope"))
}

func TestWorkerUnregistersOnCompletion(t *testing.T) {
	engine := &blockingEngine{started: make(chan struct{})}
	store, h, l := newLauncher(t, engine)
	createJob(t, store, h, "job-2")

	// Point the record at a missing input so the worker fails immediately.
	rec, _ := store.Get("job-2")
	require.NoError(t, os.Remove(rec.Filepath))

	l.StartAnalysis("job-2")
	waitFor(t, func() bool { return !l.Running("job-2") })

	got, _ := store.Get("job-2")
	assert.Equal(t, jobstore.StatusFailed, got.Status)
}

func TestInsightsEnricher_WritesArtifact(t *testing.T) {
	h, err := home.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, h.EnsureExists())

	summaryPath := h.SummaryPath("job-3")
	require.NoError(t, os.WriteFile(summaryPath, []byte(`{"columns": ["a"]}`), 0o644))

	// Disabled generator: the placeholder path still writes a valid artifact.
	e := NewInsightsEnricher(insights.NewGenerator(nil, nil), h, nil)
	enr := e.Enrich(context.Background(), "job-3", summaryPath)

	assert.Equal(t, h.InsightsPath("job-3"), enr.InsightsFile)
	assert.Equal(t, string(insights.SourceFallback), enr.Source)
	assert.NotEmpty(t, enr.Reason)
	assert.FileExists(t, enr.InsightsFile)
}
