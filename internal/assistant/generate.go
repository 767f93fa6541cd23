package assistant

import (
	"context"
	"fmt"

	"github.com/danielolaszy/prism/internal/logging"
	"github.com/danielolaszy/prism/pkg/models"
)

// Generator drafts items with a language model.
type Generator struct {
	llm      Completer
	jsonMode bool
}

// NewGenerator creates a generator. In JSON mode the model is asked for a
// JSON reply and the heading parser is only a fallback.
func NewGenerator(llm Completer, jsonMode bool) *Generator {
	return &Generator{llm: llm, jsonMode: jsonMode}
}

// Generation is the result of a generate call.
type Generation struct {
	Kind  models.ItemKind     `json:"kind"`
	Items []models.ParsedItem `json:"items"`
	Raw   string              `json:"raw"`
}

// Generate drafts count items of kind for the issue summarized by summary.
func (g *Generator) Generate(ctx context.Context, kind models.ItemKind, summary string, count int) (Generation, error) {
	if !kind.Valid() {
		return Generation{}, fmt.Errorf("unsupported item kind %q", kind)
	}

	raw, err := g.llm.Complete(ctx, CompletionRequest{
		Messages: GenerateMessages(kind, summary, count, g.jsonMode),
		JSON:     g.jsonMode,
	})
	if err != nil {
		return Generation{}, fmt.Errorf("failed to generate %s items: %w", kind, err)
	}

	items := g.Parse(raw, kind)
	logging.Info("generated items", "kind", kind, "count", len(items))
	return Generation{Kind: kind, Items: items, Raw: raw}, nil
}

// Parse parses a reply with the parser matching the generator's mode.
func (g *Generator) Parse(raw string, kind models.ItemKind) []models.ParsedItem {
	if g.jsonMode {
		return ParseJSON(raw, kind)
	}
	return Parse(raw, kind)
}
