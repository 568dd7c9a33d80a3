// Package dataset loads tabular files (CSV, TSV, Excel, JSON) into a simple
// column-oriented table model and applies saved training schemas to new data.
package dataset

import (
	"strconv"
	"strings"
	"time"
)

// Dtype is a column data type. Names follow the convention of the analysis
// runner's dataframe library so saved schemas round-trip unchanged.
type Dtype string

const (
	DtypeInt      Dtype = "int64"
	DtypeFloat    Dtype = "float64"
	DtypeBool     Dtype = "bool"
	DtypeDatetime Dtype = "datetime64[ns]"
	DtypeObject   Dtype = "object"
)

// Table is an in-memory tabular dataset. Cells are kept as strings; dtypes
// describe how each column parses.
type Table struct {
	Columns []string
	Dtypes  []Dtype
	Rows    [][]string
}

// Shape returns (rows, columns).
func (t *Table) Shape() (int, int) {
	return len(t.Rows), len(t.Columns)
}

// ColumnIndex returns the index of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns the values of the column at index i.
func (t *Table) Column(i int) []string {
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		if i < len(row) {
			out[r] = row[i]
		}
	}
	return out
}

// DropColumn removes the column at index i in place.
func (t *Table) DropColumn(i int) {
	t.Columns = append(t.Columns[:i], t.Columns[i+1:]...)
	t.Dtypes = append(t.Dtypes[:i], t.Dtypes[i+1:]...)
	for r, row := range t.Rows {
		if i < len(row) {
			t.Rows[r] = append(row[:i], row[i+1:]...)
		}
	}
}

// UniqueCount returns the number of distinct non-empty values in column i.
func (t *Table) UniqueCount(i int) int {
	seen := make(map[string]struct{})
	for _, row := range t.Rows {
		if i < len(row) && row[i] != "" {
			seen[row[i]] = struct{}{}
		}
	}
	return len(seen)
}

// Records returns the table as a slice of column→value maps, capped at limit
// rows (no cap when limit <= 0). Used by preview responses.
func (t *Table) Records(limit int) []map[string]string {
	n := len(t.Rows)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]map[string]string, n)
	for r := 0; r < n; r++ {
		rec := make(map[string]string, len(t.Columns))
		for c, name := range t.Columns {
			if c < len(t.Rows[r]) {
				rec[name] = t.Rows[r][c]
			}
		}
		out[r] = rec
	}
	return out
}

// datetimeLayouts are the formats accepted when sniffing datetime columns.
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
}

// InferDtype sniffs a column dtype from its values. Empty cells are ignored;
// a column of only empty cells is object.
func InferDtype(values []string) Dtype {
	isInt, isFloat, isBool, isDatetime := true, true, true, true
	seen := false

	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		seen = true

		if isInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			if !isBoolLiteral(v) {
				isBool = false
			}
		}
		if isDatetime {
			if !isDatetimeLiteral(v) {
				isDatetime = false
			}
		}
		if !isInt && !isFloat && !isBool && !isDatetime {
			return DtypeObject
		}
	}

	switch {
	case !seen:
		return DtypeObject
	case isBool:
		return DtypeBool
	case isInt:
		return DtypeInt
	case isFloat:
		return DtypeFloat
	case isDatetime:
		return DtypeDatetime
	default:
		return DtypeObject
	}
}

// InferDtypes fills t.Dtypes from the table's values.
func (t *Table) InferDtypes() {
	t.Dtypes = make([]Dtype, len(t.Columns))
	for i := range t.Columns {
		t.Dtypes[i] = InferDtype(t.Column(i))
	}
}

func isBoolLiteral(v string) bool {
	switch strings.ToLower(v) {
	case "true", "false":
		return true
	}
	return false
}

func isDatetimeLiteral(v string) bool {
	for _, layout := range datetimeLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

// ParseCell validates that a raw cell parses as the given dtype. Empty cells
// always pass (treated as missing values).
func ParseCell(v string, dt Dtype) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	switch dt {
	case DtypeInt:
		_, err := strconv.ParseInt(v, 10, 64)
		return err
	case DtypeFloat:
		_, err := strconv.ParseFloat(v, 64)
		return err
	case DtypeBool:
		if !isBoolLiteral(v) {
			return strconv.ErrSyntax
		}
		return nil
	case DtypeDatetime:
		if !isDatetimeLiteral(v) {
			return strconv.ErrSyntax
		}
		return nil
	default:
		return nil
	}
}
