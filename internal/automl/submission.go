package automl

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dataspect/dataspect/internal/dataset"
	"github.com/dataspect/dataspect/internal/jobstore"
	"github.com/dataspect/dataspect/internal/runner"
)

// GenerateSubmission applies a completed job's saved schema to a test file,
// runs inference through the saved model, and writes a single-column
// submission CSV named after the saved target column. It is synchronous and
// idempotent: regenerating overwrites the previous submission.
func (w *Worker) GenerateSubmission(ctx context.Context, jobID, testPath string) (string, error) {
	rec, err := w.store.Get(jobID)
	if err != nil {
		return "", err
	}
	if rec.Type != jobstore.TypeAutoML {
		return "", fmt.Errorf("job %s is not an ml-analysis job", jobID)
	}
	if rec.Status != jobstore.StatusCompleted {
		return "", fmt.Errorf("job %s is not completed (status: %s)", jobID, rec.Status)
	}

	schema, err := dataset.LoadSchema(w.home.SchemaPath(jobID))
	if err != nil {
		return "", fmt.Errorf("saved schema not found for job %s: %w", jobID, err)
	}

	t, err := dataset.Load(testPath)
	if err != nil {
		return "", fmt.Errorf("failed to load test data: %w", err)
	}
	coerced, dropped, err := dataset.ApplySchema(t, schema)
	if err != nil {
		return "", err
	}
	if len(dropped) > 0 {
		w.logger.Warn("dropping datetime columns from test data", "job_id", jobID, "columns", dropped)
	}

	prepared, err := os.CreateTemp(w.home.OutputsPath(), jobID+"_test_*.csv")
	if err != nil {
		return "", err
	}
	preparedPath := prepared.Name()
	defer os.Remove(preparedPath)
	if err := dataset.WriteCSV(prepared, coerced); err != nil {
		prepared.Close()
		return "", fmt.Errorf("failed to write prepared test data: %w", err)
	}
	if err := prepared.Close(); err != nil {
		return "", err
	}

	predictionsPath := strings.TrimSuffix(preparedPath, ".csv") + "_predictions.txt"
	defer os.Remove(predictionsPath)

	err = w.engine.RunTool(ctx, runner.ToolPredict, []string{
		"--model", w.home.ModelPath(jobID),
		"--input", preparedPath,
		"--output", predictionsPath,
	})
	if err != nil {
		return "", fmt.Errorf("inference failed: %w", err)
	}
	if err := runner.WaitForFile(ctx, predictionsPath); err != nil {
		return "", fmt.Errorf("predictions were not written: %w", err)
	}

	predictions, err := readPredictions(predictionsPath)
	if err != nil {
		return "", err
	}
	rows, _ := coerced.Shape()
	if len(predictions) != rows {
		return "", fmt.Errorf("prediction count %d does not match test rows %d", len(predictions), rows)
	}

	submissionPath := w.home.SubmissionPath(jobID)
	if err := writeSubmission(submissionPath, schema.Target, predictions); err != nil {
		return "", err
	}
	w.logger.Info("submission generated", "job_id", jobID, "path", submissionPath, "rows", len(predictions))
	return submissionPath, nil
}

// readPredictions reads one prediction per line.
func readPredictions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read predictions: %w", err)
	}
	defer f.Close()

	var predictions []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		predictions = append(predictions, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read predictions: %w", err)
	}
	return predictions, nil
}

// writeSubmission writes the single-column CSV and syncs it to disk before
// the path is handed back to the client.
func writeSubmission(path, target string, predictions []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create submission file: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{target}); err != nil {
		return err
	}
	for _, p := range predictions {
		if err := cw.Write([]string{p}); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write submission file %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync submission file: %w", err)
	}
	return nil
}
