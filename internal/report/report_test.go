package report

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataspect/dataspect/internal/insights"
)

func sampleSummary() map[string]any {
	return map[string]any{
		"cleaned_shape": []any{float64(100), float64(3)},
		"columns":       []any{"age", "income", "city"},
		"statistics": map[string]any{
			"age": map[string]any{
				"count": float64(100), "mean": float64(41.5), "std": float64(9.25),
				"min": float64(18), "max": float64(90),
			},
		},
		"correlations": map[string]any{
			"age":    map[string]any{"age": float64(1), "income": float64(0.82)},
			"income": map[string]any{"age": float64(0.82), "income": float64(1)},
		},
		"feature_importance": map[string]any{"age": 0.7, "income": 0.3},
	}
}

func TestBuildData(t *testing.T) {
	d := BuildData("job-1", "data.csv", "2026-08-29", sampleSummary(), insights.Placeholder(), "hist.png", nil)

	assert.Equal(t, 100, d.Rows)
	assert.Equal(t, 3, d.Cols)
	assert.Equal(t, []string{"age", "income", "city"}, d.Columns)

	require.Len(t, d.Stats, 1)
	assert.Equal(t, "age", d.Stats[0].Column)
	assert.Equal(t, []string{"100", "41.5", "9.25", "18", "90"}, d.Stats[0].Values)

	assert.Equal(t, []string{"age", "income"}, d.CorrCols)
	require.Len(t, d.CorrRows, 2)
	assert.Equal(t, []string{"1", "0.82"}, d.CorrRows[0].Values)

	// Sorted by importance, descending.
	require.Len(t, d.Features, 2)
	assert.Equal(t, "age", d.Features[0].Name)
	assert.Equal(t, "income", d.Features[1].Name)

	assert.True(t, d.HasHisto)
}

func TestBuildData_MalformedValuesDegrade(t *testing.T) {
	summary := map[string]any{
		"cleaned_shape":      "not a shape",
		"columns":            map[string]any{"oops": true},
		"statistics":         []any{"wrong"},
		"correlations":       map[string]any{"age": "not a mapping"},
		"feature_importance": map[string]any{"age": "high"},
	}

	d := BuildData("job-1", "data.csv", "2026-08-29", summary, insights.Placeholder(), "", nil)
	assert.Zero(t, d.Rows)
	assert.Empty(t, d.Columns)
	assert.Empty(t, d.Stats)
	assert.Empty(t, d.CorrRows)
	assert.Empty(t, d.Features)
	assert.False(t, d.HasHisto)
}

func TestBuildData_MissingStatIsNeutral(t *testing.T) {
	summary := map[string]any{
		"statistics": map[string]any{
			"age": map[string]any{"mean": float64(41.5)},
		},
	}
	d := BuildData("job-1", "data.csv", "", summary, insights.Document{}, "", nil)
	require.Len(t, d.Stats, 1)
	assert.Equal(t, []string{"--", "41.5", "--", "--", "--"}, d.Stats[0].Values)
}

func TestEscape(t *testing.T) {
	assert.Equal(t, `a\_b \& c\%`, Escape("a_b & c%"))
	assert.Equal(t, `\textbackslash{}x`, Escape(`\x`))
	assert.Equal(t, `50\$ \{deal\}`, Escape("50$ {deal}"))
}

func TestRenderTex(t *testing.T) {
	d := BuildData("job-1", "sales_2024.csv", "2026-08-29", sampleSummary(), insights.Document{
		Summary:             "Numeric data with 5% missing.",
		KeyColumns:          []string{"age"},
		CorrelationInsights: "age & income move together.",
		Recommendations:     []string{"Impute missing values."},
	}, "/tmp/job-1_histogram.png", nil)

	tex, err := RenderTex(d)
	require.NoError(t, err)
	out := string(tex)

	assert.Contains(t, out, `\documentclass{article}`)
	assert.Contains(t, out, `sales\_2024.csv`)
	assert.Contains(t, out, `Numeric data with 5\% missing.`)
	assert.Contains(t, out, `age \& income move together.`)
	assert.Contains(t, out, `\item Impute missing values.`)
	assert.Contains(t, out, `\detokenize{/tmp/job-1_histogram.png}`)
	assert.Contains(t, out, `\begin{tabular}{lrrrrr}`)
	assert.NotContains(t, out, "<<", "all template actions must be resolved")
}

func TestRenderTex_EmptySectionsOmitted(t *testing.T) {
	d := BuildData("job-1", "data.csv", "", map[string]any{}, insights.Document{Summary: "n/a"}, "", nil)
	tex, err := RenderTex(d)
	require.NoError(t, err)
	out := string(tex)
	assert.NotContains(t, out, `\section{Descriptive Statistics}`)
	assert.NotContains(t, out, `\section{Correlation Matrix}`)
	assert.NotContains(t, out, `\section{Feature Importance}`)
	assert.NotContains(t, out, `\includegraphics`)
}

func TestRunTool_MissingBinaryError(t *testing.T) {
	r := NewRenderer("dataspect-no-such-latex", "dataspect-no-such-pandoc", 0, nil)
	err := r.runTool(context.Background(), r.latexCmd, "-v")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "dataspect-no-such-latex"))
}
