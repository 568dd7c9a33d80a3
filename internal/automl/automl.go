// Package automl implements the model-search stage: it preprocesses an
// uploaded training set, drives the external AutoML search through the
// runner, and records model recommendations on the job.
package automl

import (
	"fmt"

	"github.com/dataspect/dataspect/internal/dataset"
)

// Metrics accepted by the ml-analysis endpoint, mapped to search objectives.
// A metric is only valid for the problem type it scores.
var metricObjectives = map[string]struct {
	objective      string
	classification bool
}{
	"accuracy": {"Accuracy Binary", true},
	"f1-score": {"F1", true},
	"rmse":     {"Root Mean Squared Error", false},
	"mae":      {"Mean Absolute Error", false},
	"r2":       {"R2", false},
}

// ValidMetric reports whether the metric name is one the service accepts.
func ValidMetric(metric string) bool {
	_, ok := metricObjectives[metric]
	return ok
}

// Metrics returns the accepted metric names, for validation error messages.
func Metrics() []string {
	return []string{"accuracy", "f1-score", "rmse", "mae", "r2"}
}

// ObjectiveFor resolves a metric to the search objective, rejecting metrics
// incompatible with the detected problem type.
func ObjectiveFor(metric string, isClassification bool) (string, error) {
	m, ok := metricObjectives[metric]
	if !ok || m.classification != isClassification {
		problem := "regression"
		if isClassification {
			problem = "classification"
		}
		return "", fmt.Errorf("invalid metric for %s: %s", problem, metric)
	}
	return m.objective, nil
}

// Targets with fewer unique values than this are treated as classification
// even when numeric.
const classificationUniqueThreshold = 20

// idColumn is dropped from training data when present.
const idColumn = "id"

// Prepared is a training table after preprocessing, with the facts the
// search and the recommendations artifact need.
type Prepared struct {
	Table            *dataset.Table
	Target           string
	IsClassification bool
	NumericCols      []string
	CategoricalCols  []string
	HasMissing       bool
	DroppedDatetime  []string
}

// Prepare preprocesses a raw training table: drops the id column when
// present, drops datetime columns, and takes the last remaining column as
// the prediction target.
func Prepare(t *dataset.Table) (*Prepared, error) {
	if i := t.ColumnIndex(idColumn); i >= 0 {
		t.DropColumn(i)
	}

	var droppedDatetime []string
	for i := 0; i < len(t.Columns); {
		if t.Dtypes[i] == dataset.DtypeDatetime {
			droppedDatetime = append(droppedDatetime, t.Columns[i])
			t.DropColumn(i)
			continue
		}
		i++
	}

	if len(t.Columns) < 2 {
		return nil, fmt.Errorf("training data needs at least one feature and a target column, got %d usable columns", len(t.Columns))
	}
	rows, _ := t.Shape()
	if rows == 0 {
		return nil, fmt.Errorf("training data has no rows")
	}

	targetIdx := len(t.Columns) - 1
	target := t.Columns[targetIdx]
	isClassification := t.Dtypes[targetIdx] == dataset.DtypeObject ||
		t.UniqueCount(targetIdx) < classificationUniqueThreshold

	p := &Prepared{
		Table:            t,
		Target:           target,
		IsClassification: isClassification,
		DroppedDatetime:  droppedDatetime,
	}
	for i, c := range t.Columns {
		if i == targetIdx {
			continue
		}
		switch t.Dtypes[i] {
		case dataset.DtypeInt, dataset.DtypeFloat:
			p.NumericCols = append(p.NumericCols, c)
		case dataset.DtypeObject, dataset.DtypeBool:
			p.CategoricalCols = append(p.CategoricalCols, c)
		}
	}
	for _, row := range t.Rows {
		for _, cell := range row {
			if cell == "" {
				p.HasMissing = true
			}
		}
	}
	return p, nil
}

// PreprocessingSteps names the preprocessing the recommended pipeline applies.
func (p *Prepared) PreprocessingSteps() []string {
	var steps []string
	if len(p.NumericCols) > 0 {
		steps = append(steps, "Scaling for numeric columns")
	}
	if len(p.CategoricalCols) > 0 {
		steps = append(steps, "Encoding for categorical columns")
	}
	if p.HasMissing {
		steps = append(steps, "Impute missing values")
	}
	return steps
}

// ProblemType returns the search problem type.
func (p *Prepared) ProblemType() string {
	if p.IsClassification {
		return "binary"
	}
	return "regression"
}

// Recommendations is the ML recommendations artifact.
type Recommendations struct {
	BestModel        string   `json:"best_model"`
	Preprocessing    []string `json:"preprocessing"`
	Performance      float64  `json:"performance"`
	IsClassification bool     `json:"is_classification"`
	TargetCol        string   `json:"target_col"`
	NumericCols      []string `json:"numeric_cols"`
	CategoricalCols  []string `json:"categorical_cols"`
	ModelPath        string   `json:"model_path"`
}

// searchResult is what the external search tool writes on completion.
type searchResult struct {
	BestModel   string  `json:"best_model"`
	Performance float64 `json:"performance"`
}
