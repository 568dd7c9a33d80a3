package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Schema records the feature-column contract a model was trained with:
// column order and dtypes. Applying it to new data reproduces the exact
// preprocessing shape the pipeline expects.
type Schema struct {
	Columns []string         `json:"columns"`
	Dtypes  map[string]Dtype `json:"dtypes"`
	Target  string           `json:"target_col"`
}

// SchemaFromTable captures the schema of a training table whose last column
// (at targetIdx) is the target.
func SchemaFromTable(t *Table, targetIdx int) Schema {
	s := Schema{Dtypes: make(map[string]Dtype)}
	for i, c := range t.Columns {
		if i == targetIdx {
			s.Target = c
			continue
		}
		s.Columns = append(s.Columns, c)
		s.Dtypes[c] = t.Dtypes[i]
	}
	return s
}

// SaveSchema writes the schema as JSON.
func SaveSchema(path string, s Schema) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write schema: %w", err)
	}
	return nil
}

// LoadSchema reads a schema written by SaveSchema.
func LoadSchema(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("failed to read schema: %w", err)
	}
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return Schema{}, fmt.Errorf("failed to parse schema: %w", err)
	}
	return s, nil
}

// ApplySchema conforms t to the saved schema in place:
// missing required columns are an error; extra columns are dropped; columns
// are reordered to training order; every cell is checked against the saved
// dtype, with each failing column reported individually; datetime columns
// are dropped afterwards (unsupported by the downstream pipeline).
//
// Returns the conformed table and the names of dropped datetime columns.
func ApplySchema(t *Table, s Schema) (*Table, []string, error) {
	var missing []string
	for _, c := range s.Columns {
		if t.ColumnIndex(c) < 0 {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("test file is missing required columns: %s", strings.Join(missing, ", "))
	}

	// Reorder to training order, implicitly dropping extras.
	out := &Table{
		Columns: append([]string(nil), s.Columns...),
		Dtypes:  make([]Dtype, len(s.Columns)),
		Rows:    make([][]string, len(t.Rows)),
	}
	indices := make([]int, len(s.Columns))
	for i, c := range s.Columns {
		indices[i] = t.ColumnIndex(c)
		out.Dtypes[i] = s.Dtypes[c]
	}
	for r, row := range t.Rows {
		newRow := make([]string, len(indices))
		for i, idx := range indices {
			if idx < len(row) {
				newRow[i] = row[idx]
			}
		}
		out.Rows[r] = newRow
	}

	// Validate dtype coercion column by column so every offending column is
	// named, not just the first.
	var coerceErrs []string
	for i, c := range out.Columns {
		dt := out.Dtypes[i]
		for r, row := range out.Rows {
			if err := ParseCell(row[i], dt); err != nil {
				coerceErrs = append(coerceErrs,
					fmt.Sprintf("column %q: cannot convert value %q (row %d) to %s", c, row[i], r+1, dt))
				break
			}
		}
	}
	if len(coerceErrs) > 0 {
		return nil, nil, fmt.Errorf("dtype coercion failed: %s", strings.Join(coerceErrs, "; "))
	}

	// Drop datetime columns last, after coercion, matching training-side
	// behavior.
	var dropped []string
	for i := len(out.Columns) - 1; i >= 0; i-- {
		if out.Dtypes[i] == DtypeDatetime {
			dropped = append([]string{out.Columns[i]}, dropped...)
			out.DropColumn(i)
		}
	}

	return out, dropped, nil
}
