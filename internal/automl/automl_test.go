package automl

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataspect/dataspect/internal/dataset"
	"github.com/dataspect/dataspect/internal/home"
	"github.com/dataspect/dataspect/internal/jobstore"
	"github.com/dataspect/dataspect/internal/runner"
)

func loadCSV(t *testing.T, content string) *dataset.Table {
	t.Helper()
	path := t.TempDir() + "/data.csv"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	tab, err := dataset.Load(path)
	require.NoError(t, err)
	return tab
}

func TestPrepare_DropsIDAndDatetime(t *testing.T) {
	tab := loadCSV(t, "id,signup,age,churned\n1,2021-01-02,34,yes\n2,2021-03-04,51,no\n")

	prep, err := Prepare(tab)
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "churned"}, prep.Table.Columns)
	assert.Equal(t, []string{"signup"}, prep.DroppedDatetime)
	assert.Equal(t, "churned", prep.Target)
}

func TestPrepare_ClassificationByDtype(t *testing.T) {
	tab := loadCSV(t, "age,label\n34,yes\n51,no\n")
	prep, err := Prepare(tab)
	require.NoError(t, err)
	assert.True(t, prep.IsClassification)
	assert.Equal(t, "binary", prep.ProblemType())
}

func TestPrepare_RegressionForHighCardinalityNumericTarget(t *testing.T) {
	var b strings.Builder
	b.WriteString("x,y\n")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "%d,%d.5\n", i, i*3)
	}
	prep, err := Prepare(loadCSV(t, b.String()))
	require.NoError(t, err)
	assert.False(t, prep.IsClassification)
	assert.Equal(t, "regression", prep.ProblemType())
}

func TestPrepare_NumericTargetWithFewValuesIsClassification(t *testing.T) {
	var b strings.Builder
	b.WriteString("x,cls\n")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "%d,%d\n", i, i%3)
	}
	prep, err := Prepare(loadCSV(t, b.String()))
	require.NoError(t, err)
	assert.True(t, prep.IsClassification)
}

func TestPrepare_ColumnKindsAndMissing(t *testing.T) {
	tab := loadCSV(t, "age,city,score,label\n34,london,1.5,yes\n51,,2.5,no\n")
	prep, err := Prepare(tab)
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "score"}, prep.NumericCols)
	assert.Equal(t, []string{"city"}, prep.CategoricalCols)
	assert.True(t, prep.HasMissing)
	assert.Equal(t, []string{
		"Scaling for numeric columns",
		"Encoding for categorical columns",
		"Impute missing values",
	}, prep.PreprocessingSteps())
}

func TestPrepare_TooFewColumns(t *testing.T) {
	tab := loadCSV(t, "id,label\n1,yes\n2,no\n")
	_, err := Prepare(tab)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one feature")
}

func TestObjectiveFor(t *testing.T) {
	obj, err := ObjectiveFor("accuracy", true)
	require.NoError(t, err)
	assert.Equal(t, "Accuracy Binary", obj)

	obj, err = ObjectiveFor("rmse", false)
	require.NoError(t, err)
	assert.Equal(t, "Root Mean Squared Error", obj)

	_, err = ObjectiveFor("rmse", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid metric for classification: rmse")

	_, err = ObjectiveFor("accuracy", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid metric for regression: accuracy")

	_, err = ObjectiveFor("logloss", true)
	require.Error(t, err)
}

func TestValidMetric(t *testing.T) {
	for _, m := range Metrics() {
		assert.True(t, ValidMetric(m), m)
	}
	assert.False(t, ValidMetric("auc"))
}

// stubEngine fakes the external search and predict tools by interpreting
// their flag arguments.
type stubEngine struct {
	searchErr   error
	predictErr  error
	predictions []string
	toolCalls   []string
}

func (s *stubEngine) ExecuteNotebook(context.Context, runner.NotebookRequest) error { return nil }

func (s *stubEngine) RunTool(_ context.Context, tool string, args []string) error {
	s.toolCalls = append(s.toolCalls, tool)
	flags := map[string]string{}
	for i := 0; i+1 < len(args); i += 2 {
		flags[args[i]] = args[i+1]
	}

	switch tool {
	case runner.ToolAutoMLSearch:
		if s.searchErr != nil {
			return s.searchErr
		}
		if err := os.WriteFile(flags["--model-out"], []byte("model"), 0o644); err != nil {
			return err
		}
		result := map[string]any{"best_model": "Random Forest Classifier", "performance": 0.91}
		data, _ := json.Marshal(result)
		return os.WriteFile(flags["--result-out"], data, 0o644)
	case runner.ToolPredict:
		if s.predictErr != nil {
			return s.predictErr
		}
		return os.WriteFile(flags["--output"], []byte(strings.Join(s.predictions, "\n")+"\n"), 0o644)
	}
	return errors.New("unknown tool")
}

func (s *stubEngine) Name() string { return "stub" }

func newTestWorker(t *testing.T, engine runner.Engine) (*jobstore.Store, *home.Dir, *Worker, string) {
	t.Helper()
	h, err := home.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, h.EnsureExists())

	store := jobstore.New(nil)
	jobID := "ml-1"
	input := h.UploadPath(jobID, "train.csv")
	require.NoError(t, os.WriteFile(input, []byte("age,city,churned\n34,london,yes\n51,paris,no\n48,rome,yes\n"), 0o644))
	store.Create(jobstore.Record{ID: jobID, Type: jobstore.TypeAutoML, Filename: "train.csv", Filepath: input, Metric: "accuracy"})

	return store, h, NewWorker(store, h, engine, 0, nil), jobID
}

func TestWorker_CompletesWithRecommendations(t *testing.T) {
	engine := &stubEngine{}
	store, h, w, jobID := newTestWorker(t, engine)

	w.Run(context.Background(), jobID)

	rec, err := store.Get(jobID)
	require.NoError(t, err)
	assert.Equal(t, jobstore.StatusCompleted, rec.Status)
	assert.Equal(t, 100, rec.Progress)
	assert.Equal(t, h.RecommendationsPath(jobID), rec.OutputFile)
	assert.Equal(t, h.ModelPath(jobID), rec.ModelFile)

	data, err := os.ReadFile(rec.OutputFile)
	require.NoError(t, err)
	var recs Recommendations
	require.NoError(t, json.Unmarshal(data, &recs))
	assert.Equal(t, "Random Forest Classifier", recs.BestModel)
	assert.True(t, recs.IsClassification)
	assert.Equal(t, "churned", recs.TargetCol)
	assert.Equal(t, []string{"age"}, recs.NumericCols)
	assert.Equal(t, []string{"city"}, recs.CategoricalCols)
	assert.InDelta(t, 0.91, recs.Performance, 1e-9)

	schema, err := dataset.LoadSchema(h.SchemaPath(jobID))
	require.NoError(t, err)
	assert.Equal(t, "churned", schema.Target)
	assert.Equal(t, []string{"age", "city"}, schema.Columns)
}

func TestWorker_MetricMismatchFails(t *testing.T) {
	engine := &stubEngine{}
	store, h, w, _ := newTestWorker(t, engine)

	// Classification target with a regression metric.
	input := h.UploadPath("ml-2", "train.csv")
	require.NoError(t, os.WriteFile(input, []byte("age,city,churned\n34,london,yes\n51,paris,no\n"), 0o644))
	store.Create(jobstore.Record{ID: "ml-2", Type: jobstore.TypeAutoML, Filepath: input, Metric: "rmse"})

	w.Run(context.Background(), "ml-2")

	got, _ := store.Get("ml-2")
	assert.Equal(t, jobstore.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "invalid metric for classification: rmse")
	assert.Empty(t, engine.toolCalls, "search must not run with a mismatched metric")
}

func TestWorker_SearchFailureIsRecorded(t *testing.T) {
	engine := &stubEngine{searchErr: errors.New("search budget exhausted with no pipelines")}
	store, _, w, jobID := newTestWorker(t, engine)

	w.Run(context.Background(), jobID)

	rec, _ := store.Get(jobID)
	assert.Equal(t, jobstore.StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "model search failed")
}

func TestGenerateSubmission(t *testing.T) {
	engine := &stubEngine{predictions: []string{"yes", "no"}}
	_, h, w, jobID := newTestWorker(t, engine)
	w.Run(context.Background(), jobID)

	testPath := h.UploadPath(jobID, "test.csv")
	require.NoError(t, os.WriteFile(testPath, []byte("city,age\nlondon,40\nparis,29\n"), 0o644))

	path, err := w.GenerateSubmission(context.Background(), jobID, testPath)
	require.NoError(t, err)
	assert.Equal(t, h.SubmissionPath(jobID), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"churned"}, {"yes"}, {"no"}}, rows)

	// Regenerating overwrites rather than appending.
	path2, err := w.GenerateSubmission(context.Background(), jobID, testPath)
	require.NoError(t, err)
	assert.Equal(t, path, path2)
	f2, err := os.Open(path2)
	require.NoError(t, err)
	defer f2.Close()
	rows2, err := csv.NewReader(f2).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows2, 3)
}

func TestGenerateSubmission_RejectsIncompleteJob(t *testing.T) {
	engine := &stubEngine{}
	_, h, w, jobID := newTestWorker(t, engine)

	testPath := h.UploadPath(jobID, "test.csv")
	require.NoError(t, os.WriteFile(testPath, []byte("city,age\nlondon,40\n"), 0o644))

	_, err := w.GenerateSubmission(context.Background(), jobID, testPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not completed")
}

func TestGenerateSubmission_MissingColumn(t *testing.T) {
	engine := &stubEngine{predictions: []string{"yes"}}
	_, h, w, jobID := newTestWorker(t, engine)
	w.Run(context.Background(), jobID)

	testPath := h.UploadPath(jobID, "test.csv")
	require.NoError(t, os.WriteFile(testPath, []byte("age\n40\n"), 0o644))

	_, err := w.GenerateSubmission(context.Background(), jobID, testPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "city")
}

func TestGenerateSubmission_PredictionCountMismatch(t *testing.T) {
	engine := &stubEngine{predictions: []string{"yes"}}
	_, h, w, jobID := newTestWorker(t, engine)
	w.Run(context.Background(), jobID)

	testPath := h.UploadPath(jobID, "test.csv")
	require.NoError(t, os.WriteFile(testPath, []byte("city,age\nlondon,40\nparis,29\n"), 0o644))

	_, err := w.GenerateSubmission(context.Background(), jobID, testPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}
