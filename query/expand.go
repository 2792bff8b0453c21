package query

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/prompts"
	"go.uber.org/zap"
)

const expansionTemplate = `You are an expert financial researcher. Generate {{.count}} distinct search queries based on the following topic to retrieve comprehensive financial information.
Focus on different aspects: market sentiment, fundamental data, and recent news.

Topic: {{.topic}}

Output ONLY the queries as a newline-separated list. Do not number them.`

const DefaultVariants = 3

// Completer is the slice of the completion service the expander needs.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Expander struct {
	llm      Completer
	template prompts.PromptTemplate
	variants int
	logger   *zap.Logger
}

func NewExpander(llm Completer, variants int, logger *zap.Logger) *Expander {
	if variants <= 0 {
		variants = DefaultVariants
	}
	return &Expander{
		llm:      llm,
		template: prompts.NewPromptTemplate(expansionTemplate, []string{"topic", "count"}),
		variants: variants,
		logger:   logger,
	}
}

// Expand returns the normalized query followed by up to e.variants semantic
// variants, deduplicated. The original query is always first; any failure of the
// completion service degrades to the original alone.
func (e *Expander) Expand(ctx context.Context, q string) []string {
	prompt, err := e.template.Format(map[string]any{"topic": q, "count": e.variants})
	if err != nil {
		e.logger.Warn("failed to render expansion prompt", zap.Error(err))
		return []string{q}
	}

	out, err := e.llm.Complete(ctx, prompt)
	if err != nil {
		e.logger.Warn("query expansion failed, using original query",
			zap.String("query", q),
			zap.Error(err))
		return []string{q}
	}

	queries := mergeVariants(q, ParseVariants(out), e.variants)
	e.logger.Debug("query expanded", zap.String("query", q), zap.Strings("queries", queries))
	return queries
}

// ParseVariants splits newline-delimited model output and drops blank lines.
func ParseVariants(out string) []string {
	var variants []string
	for _, line := range strings.Split(out, "\n") {
		if v := strings.TrimSpace(line); v != "" {
			variants = append(variants, v)
		}
	}
	return variants
}

func mergeVariants(original string, variants []string, limit int) []string {
	seen := map[string]struct{}{original: {}}
	queries := []string{original}
	added := 0
	for _, v := range variants {
		if added == limit {
			break
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		queries = append(queries, v)
		added++
	}
	return queries
}
