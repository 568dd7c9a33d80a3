package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// AllowedExtensions is the upload allow-list.
var AllowedExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
	".xls":  true,
	".json": true,
}

// ExtensionAllowed reports whether the filename's extension is accepted.
func ExtensionAllowed(filename string) bool {
	return AllowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Load reads a tabular file into a Table, dispatching on extension.
// The first row of delimited/spreadsheet files is the header. Dtypes are
// inferred.
func Load(path string) (*Table, error) {
	t, err := loadRaw(path)
	if err != nil {
		return nil, err
	}
	t.InferDtypes()
	return t, nil
}

// LoadHead reads at most n data rows. Used for previews of large files.
func LoadHead(path string, n int) (*Table, error) {
	t, err := Load(path)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(t.Rows) > n {
		t.Rows = t.Rows[:n]
	}
	return t, nil
}

func loadRaw(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadDelimited(path, ',')
	case ".tsv":
		return loadDelimited(path, '\t')
	case ".xlsx", ".xls":
		return loadExcel(path)
	case ".json":
		return loadJSON(path)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
}

func loadDelimited(path string, sep rune) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	data = decodeText(data)

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sep
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("file %s is empty", filepath.Base(path))
	}

	t := &Table{Columns: records[0]}
	for _, row := range records[1:] {
		// Pad short rows so every row matches the header width.
		for len(row) < len(t.Columns) {
			row = append(row, "")
		}
		t.Rows = append(t.Rows, row[:len(t.Columns)])
	}
	return t, nil
}

// ole2Signature is the compound-file magic that opens legacy BIFF .xls
// workbooks. excelize reads OOXML only, so these get a targeted error
// instead of an opaque parse failure.
var ole2Signature = []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}

// isLegacyXLS sniffs the file header for the OLE2 signature.
func isLegacyXLS(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	header := make([]byte, len(ole2Signature))
	if _, err := io.ReadFull(f, header); err != nil {
		return false
	}
	return bytes.Equal(header, ole2Signature)
}

func loadExcel(path string) (*Table, error) {
	if isLegacyXLS(path) {
		return nil, fmt.Errorf("legacy .xls (Excel 97-2003) is not supported, convert %s to .xlsx", filepath.Base(path))
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", filepath.Base(path))
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheets[0])
	}

	t := &Table{Columns: rows[0]}
	for _, row := range rows[1:] {
		for len(row) < len(t.Columns) {
			row = append(row, "")
		}
		t.Rows = append(t.Rows, row[:len(t.Columns)])
	}
	return t, nil
}

// loadJSON accepts an array of flat objects (the shape produced by
// dataframe-style to_json exports). Column order is the sorted union of keys.
func loadJSON(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse %s: expected an array of objects: %w", filepath.Base(path), err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("file %s contains no records", filepath.Base(path))
	}

	colSet := make(map[string]struct{})
	for _, rec := range records {
		for k := range rec {
			colSet[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(colSet))
	for k := range colSet {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	t := &Table{Columns: cols}
	for _, rec := range records {
		row := make([]string, len(cols))
		for i, c := range cols {
			if v, ok := rec[c]; ok && v != nil {
				row[i] = stringify(v)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		// Avoid "1" rendering as "1.000000".
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	case bool:
		return fmt.Sprintf("%t", x)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

// decodeText strips a UTF-8 BOM and transcodes Latin-1 when the bytes are not
// valid UTF-8, mirroring the encoding fallback chain of the original service.
func decodeText(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return data
	}
	var buf bytes.Buffer
	buf.Grow(len(data))
	for _, b := range data {
		buf.WriteRune(rune(b))
	}
	return buf.Bytes()
}

// WriteCSV writes a table to w as CSV with a header row.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
