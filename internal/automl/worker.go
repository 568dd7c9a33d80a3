package automl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/dataspect/dataspect/internal/dataset"
	"github.com/dataspect/dataspect/internal/home"
	"github.com/dataspect/dataspect/internal/jobstore"
	"github.com/dataspect/dataspect/internal/runner"
)

// Progress checkpoints for the model-search stage.
const (
	progressStarted   = 10
	progressPrepared  = 20
	progressValidated = 40
	progressSearched  = 60
	progressDone      = 100
)

const defaultBudget = 2 * time.Minute

// Worker runs the AutoML search stage for one job at a time.
type Worker struct {
	store  *jobstore.Store
	home   *home.Dir
	engine runner.Engine
	budget time.Duration
	logger *slog.Logger
}

// NewWorker creates a search worker. budget bounds the external search time.
func NewWorker(store *jobstore.Store, h *home.Dir, engine runner.Engine, budget time.Duration, logger *slog.Logger) *Worker {
	if budget <= 0 {
		budget = defaultBudget
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:  store,
		home:   h,
		engine: engine,
		budget: budget,
		logger: logger.With("component", "automl"),
	}
}

// Run executes the search stage for the job. Every failure mode is caught
// here and converted into a failed job record; nothing propagates to the
// caller goroutine.
func (w *Worker) Run(ctx context.Context, jobID string) {
	logger := w.logger.With("job_id", jobID)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("automl worker panicked", "panic", r, "stack", string(debug.Stack()))
			w.store.MarkFailed(jobID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if err := w.run(ctx, jobID); err != nil {
		logger.Error("automl failed", "error", err)
		w.store.MarkFailed(jobID, err.Error())
	}
}

func (w *Worker) run(ctx context.Context, jobID string) error {
	rec, err := w.store.Get(jobID)
	if err != nil {
		return err
	}
	logger := w.logger.With("job_id", jobID)

	w.store.MarkProcessing(jobID, progressStarted)

	t, err := dataset.Load(rec.Filepath)
	if err != nil {
		return fmt.Errorf("failed to load training data: %w", err)
	}

	prep, err := Prepare(t)
	if err != nil {
		return err
	}
	if len(prep.DroppedDatetime) > 0 {
		logger.Warn("dropping datetime columns", "columns", prep.DroppedDatetime)
	}
	w.store.SetProgress(jobID, progressPrepared)

	objective, err := ObjectiveFor(rec.Metric, prep.IsClassification)
	if err != nil {
		return err
	}

	schema := dataset.SchemaFromTable(prep.Table, len(prep.Table.Columns)-1)
	if err := dataset.SaveSchema(w.home.SchemaPath(jobID), schema); err != nil {
		return err
	}

	preparedPath := w.home.PreparedPath(jobID)
	if err := writeTable(preparedPath, prep.Table); err != nil {
		return fmt.Errorf("failed to write prepared training data: %w", err)
	}
	w.store.SetProgress(jobID, progressValidated)

	modelPath := w.home.ModelPath(jobID)
	resultPath := w.home.SearchResultPath(jobID)
	logger.Info("starting model search",
		"target", prep.Target,
		"problem_type", prep.ProblemType(),
		"objective", objective,
		"budget", w.budget,
	)
	err = w.engine.RunTool(ctx, runner.ToolAutoMLSearch, searchArgs(
		preparedPath, prep.Target, prep.ProblemType(), objective, w.budget, modelPath, resultPath,
	))
	if err != nil {
		return fmt.Errorf("model search failed: %w", err)
	}
	w.store.SetProgress(jobID, progressSearched)

	if err := runner.WaitForFile(ctx, resultPath); err != nil {
		return fmt.Errorf("search result was not written: %w", err)
	}
	result, err := readSearchResult(resultPath)
	if err != nil {
		return err
	}

	recs := Recommendations{
		BestModel:        result.BestModel,
		Preprocessing:    prep.PreprocessingSteps(),
		Performance:      result.Performance,
		IsClassification: prep.IsClassification,
		TargetCol:        prep.Target,
		NumericCols:      prep.NumericCols,
		CategoricalCols:  prep.CategoricalCols,
		ModelPath:        modelPath,
	}
	outputPath := w.home.RecommendationsPath(jobID)
	if err := writeJSON(outputPath, recs); err != nil {
		return fmt.Errorf("failed to write recommendations: %w", err)
	}

	done := jobstore.StatusCompleted
	progress := progressDone
	w.store.Apply(jobID, jobstore.Update{
		Status:     &done,
		Progress:   &progress,
		OutputFile: &outputPath,
		ModelFile:  &modelPath,
	})
	logger.Info("model search completed", "best_model", result.BestModel, "performance", result.Performance)
	return nil
}

func searchArgs(input, target, problemType, objective string, budget time.Duration, modelOut, resultOut string) []string {
	return []string{
		"--input", input,
		"--target", target,
		"--problem-type", problemType,
		"--objective", objective,
		"--max-time", strconv.Itoa(int(budget.Seconds())),
		"--model-out", modelOut,
		"--result-out", resultOut,
	}
}

func readSearchResult(path string) (searchResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return searchResult{}, fmt.Errorf("failed to read search result: %w", err)
	}
	var result searchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return searchResult{}, fmt.Errorf("failed to decode search result: %w", err)
	}
	if result.BestModel == "" {
		return searchResult{}, fmt.Errorf("search result names no model")
	}
	return result, nil
}

func writeTable(path string, t *dataset.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := dataset.WriteCSV(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
