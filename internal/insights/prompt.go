package insights

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// promptSections is the preferred ordering of summary keys embedded in the
// prompt. Keys absent from the artifact are skipped; unknown keys are appended
// after the known ones so a richer notebook still gets its data across.
var promptSections = []struct {
	key   string
	title string
}{
	{"original_shape", "Original shape (rows, columns)"},
	{"cleaned_shape", "Cleaned shape (rows, columns)"},
	{"columns", "Columns"},
	{"dtypes", "Column types"},
	{"missing_values", "Missing values per column"},
	{"statistics", "Descriptive statistics"},
	{"correlations", "Correlation matrix"},
	{"feature_importance", "Feature importance"},
}

const maxPromptSectionBytes = 4000

// BuildPrompt renders the summary artifact into the user prompt for the chat
// completion.
func BuildPrompt(summary []byte) (string, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(summary, &doc); err != nil {
		return "", fmt.Errorf("summary artifact is not a JSON object: %w", err)
	}
	if len(doc) == 0 {
		return "", fmt.Errorf("summary artifact is empty")
	}

	var b strings.Builder
	b.WriteString("Analyze this dataset summary and produce insights.\n")

	used := make(map[string]bool, len(doc))
	for _, section := range promptSections {
		raw, ok := doc[section.key]
		if !ok {
			continue
		}
		used[section.key] = true
		writeSection(&b, section.title, raw)
	}
	extras := make([]string, 0, len(doc))
	for key := range doc {
		if !used[key] {
			extras = append(extras, key)
		}
	}
	sort.Strings(extras)
	for _, key := range extras {
		writeSection(&b, key, doc[key])
	}

	b.WriteString("\nRespond with JSON only.")
	return b.String(), nil
}

func writeSection(b *strings.Builder, title string, raw json.RawMessage) {
	body := strings.TrimSpace(string(raw))
	if len(body) > maxPromptSectionBytes {
		body = body[:maxPromptSectionBytes] + "…(truncated)"
	}
	fmt.Fprintf(b, "\n%s:\n%s\n", title, body)
}
