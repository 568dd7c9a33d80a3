// Package pipeline launches job workers on detached goroutines and owns the
// cancellation registry. Workers are observable only through the job store;
// nothing joins them.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/dataspect/dataspect/internal/analysis"
	"github.com/dataspect/dataspect/internal/automl"
	"github.com/dataspect/dataspect/internal/home"
	"github.com/dataspect/dataspect/internal/insights"
	"github.com/dataspect/dataspect/internal/jobstore"
)

// Launcher starts per-job workers and tracks their cancel functions.
type Launcher struct {
	store    *jobstore.Store
	analysis *analysis.Worker
	automl   *automl.Worker
	logger   *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New creates a launcher over the stage workers.
func New(store *jobstore.Store, analysisWorker *analysis.Worker, automlWorker *automl.Worker, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{
		store:    store,
		analysis: analysisWorker,
		automl:   automlWorker,
		logger:   logger.With("component", "pipeline"),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// StartAnalysis runs the notebook analysis pipeline for the job on a
// detached goroutine.
func (l *Launcher) StartAnalysis(jobID string) {
	l.launch(jobID, l.analysis.Run)
}

// StartAutoML runs the model-search pipeline for the job on a detached
// goroutine.
func (l *Launcher) StartAutoML(jobID string) {
	l.launch(jobID, l.automl.Run)
}

// launch spawns the worker with a cancelable context detached from any HTTP
// request, and keeps the cancel function addressable until the worker
// returns.
func (l *Launcher) launch(jobID string, run func(context.Context, string)) {
	ctx, cancel := context.WithCancel(context.Background())

	l.mu.Lock()
	l.cancels[jobID] = cancel
	l.mu.Unlock()

	go func() {
		defer func() {
			l.mu.Lock()
			delete(l.cancels, jobID)
			l.mu.Unlock()
			cancel()
		}()
		run(ctx, jobID)
	}()
}

// Cancel aborts a running job. It reports whether a worker was actually
// signalled; terminal or unknown jobs have nothing to cancel.
func (l *Launcher) Cancel(jobID string) bool {
	l.mu.Lock()
	cancel, ok := l.cancels[jobID]
	l.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	l.logger.Info("job cancelled", "job_id", jobID)
	return true
}

// Running reports whether the job's worker is still alive.
func (l *Launcher) Running(jobID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.cancels[jobID]
	return ok
}

// InsightsEnricher adapts the insights generator to the analysis worker's
// enrichment hook: it reads the summary artifact, generates (or falls back),
// writes the insights artifact, and reports the typed outcome.
type InsightsEnricher struct {
	generator *insights.Generator
	home      *home.Dir
	logger    *slog.Logger
}

// NewInsightsEnricher creates the enrichment adapter.
func NewInsightsEnricher(gen *insights.Generator, h *home.Dir, logger *slog.Logger) *InsightsEnricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &InsightsEnricher{
		generator: gen,
		home:      h,
		logger:    logger.With("component", "insights"),
	}
}

// Enrich never fails: problems reading or writing artifacts degrade to the
// placeholder document and a fallback outcome.
func (e *InsightsEnricher) Enrich(ctx context.Context, jobID, summaryPath string) analysis.Enrichment {
	summary, err := os.ReadFile(summaryPath)
	if err != nil {
		e.logger.Warn("failed to read summary for enrichment", "job_id", jobID, "error", err)
	}

	doc, outcome := e.generator.Generate(ctx, summary)

	path := e.home.InsightsPath(jobID)
	if err := insights.Save(path, doc); err != nil {
		e.logger.Warn("failed to write insights artifact", "job_id", jobID, "error", err)
		return analysis.Enrichment{
			Source: string(insights.SourceFallback),
			Reason: "failed to write insights artifact: " + err.Error(),
		}
	}

	return analysis.Enrichment{
		InsightsFile: path,
		Source:       string(outcome.Source),
		Reason:       outcome.Reason,
	}
}

var _ analysis.Enricher = (*InsightsEnricher)(nil)
