package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fynex/pkg/reqctx"
	"fynex/query"
	"fynex/queue"
	"fynex/repository"
	"fynex/search"

	"go.uber.org/zap"
)

var ErrEmptyQuery = errors.New("research query is empty")

type QueryExpander interface {
	Expand(ctx context.Context, q string) []string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, job *queue.ScrapeJob) error
}

type ChunkRetriever interface {
	Retrieve(ctx context.Context, queries []string, correlationID string) ([]repository.RetrievalResult, error)
}

type Waiter interface {
	Wait(ctx context.Context, correlationID string) (PollResult, error)
}

type PipelineConfig struct {
	MaxSearchedQueries int
	ResultsPerQuery    int
	MaxSnippets        int
	SearchOptions      map[string]string
}

type ResearchResult struct {
	CorrelationID string
	Query         string
	Queries       []string
	URLs          []string
	Snippets      []search.SearchResult
	Chunks        []repository.RetrievalResult
	Enqueued      bool
	FoundDocs     bool
	Context       string
}

// Pipeline runs a research tool call end to end. Transient failures degrade
// the result instead of failing it.
type Pipeline struct {
	expander  QueryExpander
	searcher  search.SearchEngine
	enqueuer  JobEnqueuer
	waiter    Waiter
	retriever ChunkRetriever
	cfg       PipelineConfig
	logger    *zap.Logger
}

func NewPipeline(
	expander QueryExpander,
	searcher search.SearchEngine,
	enqueuer JobEnqueuer,
	waiter Waiter,
	retriever ChunkRetriever,
	cfg PipelineConfig,
	logger *zap.Logger,
) *Pipeline {
	if cfg.MaxSearchedQueries <= 0 {
		cfg.MaxSearchedQueries = 2
	}
	if cfg.MaxSnippets <= 0 {
		cfg.MaxSnippets = 5
	}
	return &Pipeline{
		expander:  expander,
		searcher:  searcher,
		enqueuer:  enqueuer,
		waiter:    waiter,
		retriever: retriever,
		cfg:       cfg,
		logger:    logger,
	}
}

func (p *Pipeline) Research(ctx context.Context, rawQuery string) (*ResearchResult, error) {
	q := query.Normalize(rawQuery)
	if q == "" {
		return nil, ErrEmptyQuery
	}

	queries := p.expander.Expand(ctx, q)
	if len(queries) == 0 {
		queries = []string{q}
	}

	snippets := p.search(ctx, queries[:min(p.cfg.MaxSearchedQueries, len(queries))])
	links := make([]string, 0, len(snippets))
	for _, s := range snippets {
		links = append(links, s.URL)
	}

	job := queue.NewScrapeJob(links)
	ctx = reqctx.WithCorrelationID(ctx, job.CorrelationID)
	logger := reqctx.Logger(ctx, p.logger)

	res := &ResearchResult{
		CorrelationID: job.CorrelationID,
		Query:         q,
		Queries:       queries,
		URLs:          job.URLs,
		Snippets:      snippets[:min(p.cfg.MaxSnippets, len(snippets))],
	}

	if err := p.enqueuer.Enqueue(ctx, job); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("enqueue failed, answering from search snippets", zap.Error(err))
	} else {
		res.Enqueued = true

		poll, err := p.waiter.Wait(ctx, job.CorrelationID)
		if err != nil {
			return nil, err
		}
		res.FoundDocs = poll.Found
	}

	if res.FoundDocs {
		chunks, err := p.retriever.Retrieve(ctx, queries, job.CorrelationID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("retrieval failed, answering from search snippets", zap.Error(err))
		}
		res.Chunks = chunks
	}
	res.Context = BuildContext(res.Chunks)

	logger.Info("research finished",
		zap.String("query", q),
		zap.Int("queries", len(queries)),
		zap.Int("urls", len(res.URLs)),
		zap.Bool("found_docs", res.FoundDocs),
		zap.Int("chunks", len(res.Chunks)))
	return res, nil
}

// search runs the searched prefix sequentially and returns every result in
// query order. A failing query is skipped.
func (p *Pipeline) search(ctx context.Context, queries []string) []search.SearchResult {
	var all []search.SearchResult
	for _, q := range queries {
		results, err := p.searcher.Search(ctx, &search.SearchRequest{
			Query:      q,
			MaxResults: p.cfg.ResultsPerQuery,
			Options:    p.cfg.SearchOptions,
		})
		if err != nil {
			p.logger.Warn("web search failed", zap.String("query", q), zap.Error(err))
			continue
		}
		all = append(all, results...)
	}
	return all
}

// ToolResult renders the research outcome as the content handed back to the
// model for its final answer.
func (r *ResearchResult) ToolResult() string {
	var b strings.Builder
	if r.Context != "" {
		b.WriteString("Relevant information from recently indexed web sources:\n\n")
		b.WriteString(r.Context)
		b.WriteString("\n\n")
	}

	if len(r.Snippets) > 0 {
		b.WriteString("Web search results:\n")
		for i, s := range r.Snippets {
			fmt.Fprintf(&b, "%d. %s\n   URL: %s\n   %s\n", i+1, s.Title, s.URL, s.Description)
		}
	}

	if b.Len() == 0 {
		fmt.Fprintf(&b, "No web information could be found for %q. Answer from general knowledge and say that current data was unavailable.", r.Query)
	}
	return strings.TrimRight(b.String(), "\n")
}
