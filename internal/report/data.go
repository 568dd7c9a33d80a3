// Package report renders a job's artifacts into a LaTeX report, typesets it
// to PDF, and converts it to an HTML view. Upstream artifacts are untrusted:
// every value is coerced to the shape the template expects, and mismatches
// degrade the report instead of failing it.
package report

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dataspect/dataspect/internal/insights"
)

// Data is the fully-coerced input to the report template.
type Data struct {
	Title      string
	JobID      string
	Generated  string
	Rows       int
	Cols       int
	Columns    []string
	Stats      []StatRow
	CorrCols   []string
	CorrRows   []CorrRow
	Features   []Feature
	Insights   insights.Document
	Histogram  string
	HasHisto   bool
	StatLabels []string
}

// StatRow is one column's descriptive statistics.
type StatRow struct {
	Column string
	Values []string
}

// CorrRow is one row of the correlation matrix.
type CorrRow struct {
	Column string
	Values []string
}

// Feature is one entry of the feature-importance list.
type Feature struct {
	Name       string
	Importance string
}

// statOrder fixes the columns of the statistics table.
var statOrder = []string{"count", "mean", "std", "min", "max"}

// BuildData coerces the summary artifact and insights document into template
// data. Malformed values log a warning and fall back to an empty or neutral
// value; BuildData never fails.
func BuildData(jobID, filename, generated string, summary map[string]any, doc insights.Document, histogram string, logger *slog.Logger) Data {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "report", "job_id", jobID)

	d := Data{
		Title:      filename,
		JobID:      jobID,
		Generated:  generated,
		Insights:   doc,
		Histogram:  histogram,
		HasHisto:   histogram != "",
		StatLabels: statOrder,
	}

	if shape := coerceIntPair(summary["cleaned_shape"], "cleaned_shape", logger); shape != nil {
		d.Rows, d.Cols = shape[0], shape[1]
	} else if shape := coerceIntPair(summary["original_shape"], "original_shape", logger); shape != nil {
		d.Rows, d.Cols = shape[0], shape[1]
	}

	d.Columns = coerceStringSlice(summary["columns"], "columns", logger)

	stats := coerceNestedMap(summary["statistics"], "statistics", logger)
	for _, col := range sortedKeys(stats) {
		row := StatRow{Column: col}
		for _, stat := range statOrder {
			row.Values = append(row.Values, formatNumber(stats[col][stat]))
		}
		d.Stats = append(d.Stats, row)
	}

	corr := coerceNestedMap(summary["correlations"], "correlations", logger)
	d.CorrCols = sortedKeys(corr)
	for _, row := range d.CorrCols {
		cr := CorrRow{Column: row}
		for _, col := range d.CorrCols {
			cr.Values = append(cr.Values, formatNumber(corr[row][col]))
		}
		d.CorrRows = append(d.CorrRows, cr)
	}

	importance := coerceNumberMap(summary["feature_importance"], "feature_importance", logger)
	for _, name := range keysByValueDesc(importance) {
		d.Features = append(d.Features, Feature{Name: name, Importance: formatNumber(ptr(importance[name]))})
	}

	return d
}

// coerceStringSlice accepts a list of strings, stringifying scalar members.
func coerceStringSlice(v any, field string, logger *slog.Logger) []string {
	if v == nil {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		logger.Warn("unexpected artifact value, substituting empty list", "field", field, "value_type", fmt.Sprintf("%T", v))
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		switch x := item.(type) {
		case string:
			out = append(out, x)
		case float64, bool:
			out = append(out, fmt.Sprintf("%v", x))
		default:
			logger.Warn("skipping non-scalar list member", "field", field, "value_type", fmt.Sprintf("%T", item))
		}
	}
	return out
}

// coerceIntPair accepts a two-element numeric list (a dataframe shape).
func coerceIntPair(v any, field string, logger *slog.Logger) []int {
	if v == nil {
		return nil
	}
	list, ok := v.([]any)
	if !ok || len(list) != 2 {
		logger.Warn("unexpected artifact value, expected [rows, cols]", "field", field, "value_type", fmt.Sprintf("%T", v))
		return nil
	}
	out := make([]int, 2)
	for i, item := range list {
		f, ok := item.(float64)
		if !ok {
			logger.Warn("unexpected artifact value, expected [rows, cols]", "field", field, "value_type", fmt.Sprintf("%T", item))
			return nil
		}
		out[i] = int(f)
	}
	return out
}

// coerceNestedMap accepts a mapping of mappings to numbers (statistics,
// correlation matrices). Non-numeric leaves are dropped with a warning.
func coerceNestedMap(v any, field string, logger *slog.Logger) map[string]map[string]*float64 {
	if v == nil {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		logger.Warn("unexpected artifact value, substituting empty mapping", "field", field, "value_type", fmt.Sprintf("%T", v))
		return nil
	}
	out := make(map[string]map[string]*float64, len(m))
	for outer, inner := range m {
		innerMap, ok := inner.(map[string]any)
		if !ok {
			logger.Warn("skipping malformed mapping entry", "field", field, "key", outer, "value_type", fmt.Sprintf("%T", inner))
			continue
		}
		row := make(map[string]*float64, len(innerMap))
		for k, val := range innerMap {
			if f, ok := val.(float64); ok {
				row[k] = &f
			} else if val != nil {
				logger.Warn("skipping non-numeric value", "field", field, "key", outer+"."+k, "value_type", fmt.Sprintf("%T", val))
			}
		}
		out[outer] = row
	}
	return out
}

// coerceNumberMap accepts a flat mapping to numbers.
func coerceNumberMap(v any, field string, logger *slog.Logger) map[string]float64 {
	if v == nil {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		logger.Warn("unexpected artifact value, substituting empty mapping", "field", field, "value_type", fmt.Sprintf("%T", v))
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, val := range m {
		f, ok := val.(float64)
		if !ok {
			logger.Warn("skipping non-numeric value", "field", field, "key", k, "value_type", fmt.Sprintf("%T", val))
			continue
		}
		out[k] = f
	}
	return out
}

func formatNumber(f *float64) string {
	if f == nil {
		return "--"
	}
	s := fmt.Sprintf("%.4f", *f)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func keysByValueDesc(m map[string]float64) []string {
	keys := sortedKeys(m)
	sort.SliceStable(keys, func(i, j int) bool {
		return m[keys[i]] > m[keys[j]]
	})
	return keys
}

func ptr(f float64) *float64 {
	return &f
}
