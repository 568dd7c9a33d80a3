// Package insights produces narrative dataset insights from a job's summary
// artifact. Generation is best-effort: when the LLM is disabled, unreachable,
// or returns a malformed document, a fixed placeholder is substituted and the
// outcome records why.
package insights

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Source identifies where an insights document came from.
type Source string

const (
	SourceLLM      Source = "llm"
	SourceFallback Source = "fallback"
)

// Outcome is the typed result of an enrichment attempt. A fallback outcome
// carries the reason the LLM path was not used.
type Outcome struct {
	Source Source `json:"source"`
	Reason string `json:"reason,omitempty"`
}

// Document is the insights artifact shape. All four fields are required.
type Document struct {
	Summary             string   `json:"summary"`
	KeyColumns          []string `json:"key_columns"`
	CorrelationInsights string   `json:"correlation_insights"`
	Recommendations     []string `json:"recommendations"`
}

const documentSchema = `{
	"type": "object",
	"required": ["summary", "key_columns", "correlation_insights", "recommendations"],
	"properties": {
		"summary": {"type": "string"},
		"key_columns": {"type": "array", "items": {"type": "string"}},
		"correlation_insights": {"type": "string"},
		"recommendations": {"type": "array", "items": {"type": "string"}}
	},
	"additionalProperties": false
}`

var compiledSchema = jsonschema.MustCompileString("insights.json", documentSchema)

// Placeholder returns the fixed document substituted when enrichment cannot
// run. Callers receive a copy.
func Placeholder() Document {
	return Document{
		Summary:             "Automated narrative insights are unavailable for this dataset. The statistical summary and histogram describe the data.",
		KeyColumns:          []string{},
		CorrelationInsights: "No correlation insights were generated.",
		Recommendations: []string{
			"Review the descriptive statistics for columns with unexpected ranges.",
			"Inspect columns with missing values before modeling.",
		},
	}
}

// Parse decodes and validates a model completion into a Document. It tolerates
// markdown code fences and surrounding prose around the JSON body.
func Parse(content string) (Document, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return Document{}, err
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("failed to decode insights for validation: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return Document{}, fmt.Errorf("insights do not match expected shape: %w", err)
	}

	var out Document
	if err := json.Unmarshal(raw, &out); err != nil {
		return Document{}, fmt.Errorf("failed to decode insights: %w", err)
	}
	return out, nil
}

// extractJSON parses JSON from model output, with lightweight recovery for
// markdown code fences and surrounding text.
func extractJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty completion")
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if start := strings.Index(content, "{"); start >= 0 {
		if end := strings.LastIndex(content, "}"); end > start {
			candidates = append(candidates, content[start:end+1])
		}
	}

	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		var parsed any
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			normalized, mErr := json.Marshal(parsed)
			if mErr != nil {
				return nil, fmt.Errorf("failed to normalize insights JSON: %w", mErr)
			}
			return normalized, nil
		}
	}
	return nil, fmt.Errorf("completion is not valid JSON")
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Save writes the document as an indented JSON artifact.
func Save(path string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode insights: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write insights file: %w", err)
	}
	return nil
}
