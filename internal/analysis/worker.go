// Package analysis implements the notebook analysis stage: it drives the
// external notebook runner over an uploaded dataset and records progress
// checkpoints on the job record.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/dataspect/dataspect/internal/home"
	"github.com/dataspect/dataspect/internal/jobstore"
	"github.com/dataspect/dataspect/internal/runner"
)

// Progress checkpoints for the analysis stage.
const (
	progressStarted   = 10
	progressExecuting = 30
	progressExecuted  = 80
	progressDone      = 100
)

// Enrichment is the typed outcome of the optional insight-generation step.
type Enrichment struct {
	InsightsFile string
	Source       string
	Reason       string
}

// Enricher turns a summary artifact into an insights artifact. Enrichment is
// best-effort: implementations report how they resolved, they never fail.
type Enricher interface {
	Enrich(ctx context.Context, jobID, summaryPath string) Enrichment
}

// Worker runs the notebook analysis stage for one job at a time.
type Worker struct {
	store    *jobstore.Store
	home     *home.Dir
	engine   runner.Engine
	enricher Enricher
	logger   *slog.Logger
}

// NewWorker creates an analysis worker. A nil enricher skips the insight
// step entirely.
func NewWorker(store *jobstore.Store, h *home.Dir, engine runner.Engine, enricher Enricher, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:    store,
		home:     h,
		engine:   engine,
		enricher: enricher,
		logger:   logger.With("component", "analysis"),
	}
}

// Run executes the analysis stage for the job. Every failure mode is caught
// here and converted into a failed job record; nothing propagates to the
// caller goroutine.
func (w *Worker) Run(ctx context.Context, jobID string) {
	logger := w.logger.With("job_id", jobID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("analysis panicked", "panic", r, "stack", string(debug.Stack()))
			w.store.MarkFailed(jobID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if err := w.run(ctx, jobID, logger); err != nil {
		logger.Error("analysis failed", "error", err)
		w.store.MarkFailed(jobID, err.Error())
	}
}

func (w *Worker) run(ctx context.Context, jobID string, logger *slog.Logger) error {
	rec, err := w.store.Get(jobID)
	if err != nil {
		return err
	}

	w.store.MarkProcessing(jobID, progressStarted)
	logger.Info("analysis started", "input", rec.Filepath)

	// Fail fast on inputs that vanished or truncated between upload and
	// pickup.
	info, err := os.Stat(rec.Filepath)
	if err != nil {
		return fmt.Errorf("input file not found: %s", rec.Filepath)
	}
	if info.Size() == 0 {
		return fmt.Errorf("input file is empty: %s", filepath.Base(rec.Filepath))
	}

	template := w.home.AnalysisTemplate()
	if _, err := os.Stat(template); err != nil {
		return fmt.Errorf("analysis template not found: %s", template)
	}

	inputPath, err := filepath.Abs(rec.Filepath)
	if err != nil {
		return fmt.Errorf("failed to resolve input path: %w", err)
	}
	notebookOut := w.home.ExecutedNotebookPath(jobID)
	imageOut := w.home.HistogramPath(jobID)
	summaryOut := w.home.SummaryPath(jobID)

	w.store.SetProgress(jobID, progressExecuting)

	if err := w.engine.ExecuteNotebook(ctx, runner.NotebookRequest{
		TemplatePath: template,
		OutputPath:   notebookOut,
		Parameters: map[string]string{
			"input_file":   inputPath,
			"output_image": imageOut,
			"summary_file": summaryOut,
			"job_id":       jobID,
		},
	}); err != nil {
		return err
	}

	w.store.SetProgress(jobID, progressExecuted)

	// A successful execution without the summary artifact is a silent
	// notebook failure; treat it as such after a bounded visibility wait.
	if err := runner.WaitForFile(ctx, summaryOut); err != nil {
		return fmt.Errorf("summary file was not created by the notebook: %w", err)
	}

	done := jobstore.StatusCompleted
	progress := progressDone
	update := jobstore.Update{
		Status:       &done,
		Progress:     &progress,
		SummaryFile:  &summaryOut,
		ImageFile:    &imageOut,
		NotebookFile: &notebookOut,
	}

	if w.enricher != nil {
		enr := w.enricher.Enrich(ctx, jobID, summaryOut)
		if enr.InsightsFile != "" {
			update.InsightsFile = &enr.InsightsFile
		}
		update.InsightsSource = &enr.Source
		if enr.Reason != "" {
			update.InsightsReason = &enr.Reason
		}
	}

	w.store.Apply(jobID, update)
	logger.Info("analysis completed", "summary", summaryOut, "image", imageOut)
	return nil
}

