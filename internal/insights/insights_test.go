package insights

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	content string
	err     error
	prompts []string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.content, nil
}

const validDoc = `{
	"summary": "Mostly numeric data with a few gaps.",
	"key_columns": ["age", "income"],
	"correlation_insights": "age and income are strongly correlated.",
	"recommendations": ["Impute missing ages.", "Scale income before modeling."]
}`

var sampleSummary = []byte(`{
	"cleaned_shape": [100, 3],
	"columns": ["age", "income", "city"],
	"missing_values": {"age": 4},
	"correlations": {"age": {"income": 0.82}}
}`)

func TestParse_ValidDocument(t *testing.T) {
	doc, err := Parse(validDoc)
	require.NoError(t, err)
	assert.Equal(t, "Mostly numeric data with a few gaps.", doc.Summary)
	assert.Equal(t, []string{"age", "income"}, doc.KeyColumns)
	assert.Len(t, doc.Recommendations, 2)
}

func TestParse_CodeFenced(t *testing.T) {
	doc, err := Parse("```json\n" + validDoc + "\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "income"}, doc.KeyColumns)
}

func TestParse_SurroundingProse(t *testing.T) {
	doc, err := Parse("Here are your insights:\n" + validDoc + "\nHope that helps!")
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Summary)
}

func TestParse_RejectsMissingAndExtraKeys(t *testing.T) {
	_, err := Parse(`{"summary": "x", "key_columns": []}`)
	require.Error(t, err)

	_, err = Parse(`{"summary": "x", "key_columns": [], "correlation_insights": "y", "recommendations": [], "confidence": 0.9}`)
	require.Error(t, err)
}

func TestParse_RejectsNonJSON(t *testing.T) {
	_, err := Parse("the dataset looks fine")
	require.Error(t, err)
}

func TestBuildPrompt_EmbedsSections(t *testing.T) {
	prompt, err := BuildPrompt(sampleSummary)
	require.NoError(t, err)
	assert.Contains(t, prompt, "Cleaned shape")
	assert.Contains(t, prompt, `"age"`)
	assert.Contains(t, prompt, "Missing values per column")
	assert.Contains(t, prompt, "0.82")
}

func TestBuildPrompt_RejectsNonObject(t *testing.T) {
	_, err := BuildPrompt([]byte(`[1, 2, 3]`))
	require.Error(t, err)
	_, err = BuildPrompt([]byte(`{}`))
	require.Error(t, err)
}

func TestGenerate_LLMPath(t *testing.T) {
	stub := &stubCompleter{content: validDoc}
	g := NewGenerator(stub, nil)

	doc, outcome := g.Generate(context.Background(), sampleSummary)
	assert.Equal(t, SourceLLM, outcome.Source)
	assert.Empty(t, outcome.Reason)
	assert.Equal(t, []string{"age", "income"}, doc.KeyColumns)
	require.Len(t, stub.prompts, 1)
}

func TestGenerate_FallbackOnCallFailure(t *testing.T) {
	stub := &stubCompleter{err: errors.New("connection refused")}
	g := NewGenerator(stub, nil)

	doc, outcome := g.Generate(context.Background(), sampleSummary)
	assert.Equal(t, SourceFallback, outcome.Source)
	assert.Contains(t, outcome.Reason, "connection refused")
	assert.Equal(t, Placeholder(), doc)
}

func TestGenerate_FallbackOnMalformedCompletion(t *testing.T) {
	stub := &stubCompleter{content: `{"summary": "only one key"}`}
	g := NewGenerator(stub, nil)

	_, outcome := g.Generate(context.Background(), sampleSummary)
	assert.Equal(t, SourceFallback, outcome.Source)
	assert.NotEmpty(t, outcome.Reason)
}

func TestGenerate_DisabledCompleter(t *testing.T) {
	g := NewGenerator(nil, nil)

	doc, outcome := g.Generate(context.Background(), sampleSummary)
	assert.Equal(t, SourceFallback, outcome.Source)
	assert.Contains(t, outcome.Reason, "disabled")
	assert.Equal(t, Placeholder(), doc)
}

func TestSave_WritesArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "insights.json")
	require.NoError(t, Save(path, Placeholder()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, Placeholder(), doc)
}
