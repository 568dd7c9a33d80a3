package insights

import (
	"context"
	"log/slog"
)

// Generator runs the enrichment attempt. A nil Completer disables the LLM
// path entirely and every call falls back.
type Generator struct {
	completer Completer
	logger    *slog.Logger
}

func NewGenerator(completer Completer, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		completer: completer,
		logger:    logger.With("component", "insights"),
	}
}

// Generate produces an insights document for the summary artifact. It never
// returns an error: any failure along the LLM path yields the placeholder
// document and a fallback outcome naming the reason.
func (g *Generator) Generate(ctx context.Context, summary []byte) (Document, Outcome) {
	if g.completer == nil {
		return g.fallback("llm enrichment disabled")
	}

	prompt, err := BuildPrompt(summary)
	if err != nil {
		return g.fallback("invalid summary artifact: " + err.Error())
	}

	content, err := g.completer.Complete(ctx, prompt)
	if err != nil {
		return g.fallback("llm call failed: " + err.Error())
	}

	doc, err := Parse(content)
	if err != nil {
		return g.fallback(err.Error())
	}

	g.logger.Info("insights generated")
	return doc, Outcome{Source: SourceLLM}
}

func (g *Generator) fallback(reason string) (Document, Outcome) {
	g.logger.Warn("substituting placeholder insights", "reason", reason)
	return Placeholder(), Outcome{Source: SourceFallback, Reason: reason}
}
