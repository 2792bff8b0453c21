package chat

import (
	"context"
	"errors"
	"sync"

	"fynex/broker"
	"fynex/completion"
	"fynex/queue"
	"fynex/rag"
	"fynex/repository"
	"fynex/search"
)

// scriptedLLM answers each Stream call with the next script entry.
type scriptedLLM struct {
	mu       sync.Mutex
	scripts  [][]completion.Event
	errs     []error
	requests []*completion.Request
	// delivered counts events handed to the callback across all calls.
	delivered int
}

func (l *scriptedLLM) Stream(_ context.Context, req *completion.Request, fn completion.StreamFunc) error {
	l.mu.Lock()
	n := len(l.requests)
	l.requests = append(l.requests, req)
	var events []completion.Event
	if n < len(l.scripts) {
		events = l.scripts[n]
	}
	var err error
	if n < len(l.errs) {
		err = l.errs[n]
	}
	l.mu.Unlock()

	for _, ev := range events {
		l.mu.Lock()
		l.delivered++
		l.mu.Unlock()
		if cbErr := fn(ev); cbErr != nil {
			if errors.Is(cbErr, completion.ErrStop) {
				return nil
			}
			return cbErr
		}
	}
	return err
}

func (l *scriptedLLM) Complete(context.Context, string) (string, error) {
	return "", errors.New("not scripted")
}

func (l *scriptedLLM) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}

func text(s string) completion.Event { return completion.Event{Text: s} }

func tool(id, name string, args map[string]any) completion.Event {
	return completion.Event{ToolCall: &completion.ToolCall{ID: id, Name: name, Arguments: args}}
}

type stubPortfolio struct {
	summary *broker.PortfolioSummary
	err     error
	tokens  []string
}

func (p *stubPortfolio) Portfolio(_ context.Context, token string) (*broker.PortfolioSummary, error) {
	p.tokens = append(p.tokens, token)
	if p.err != nil {
		return nil, p.err
	}
	return p.summary, nil
}

type stubResearcher struct {
	queries []string
	result  *rag.ResearchResult
	err     error
}

func (r *stubResearcher) Research(_ context.Context, q string) (*rag.ResearchResult, error) {
	r.queries = append(r.queries, q)
	return r.result, r.err
}

type listExpander struct{ variants []string }

func (e listExpander) Expand(_ context.Context, q string) []string {
	return append([]string{q}, e.variants...)
}

type tableSearcher map[string][]search.SearchResult

func (s tableSearcher) Search(_ context.Context, req *search.SearchRequest) ([]search.SearchResult, error) {
	return s[req.Query], nil
}

type captureEnqueuer struct{ jobs []*queue.ScrapeJob }

func (e *captureEnqueuer) Enqueue(_ context.Context, job *queue.ScrapeJob) error {
	e.jobs = append(e.jobs, job)
	return nil
}

type fixedWaiter struct{ found bool }

func (w fixedWaiter) Wait(context.Context, string) (rag.PollResult, error) {
	return rag.PollResult{Found: w.found, Attempts: 2}, nil
}

// taggedRetriever returns one chunk per query tagged with the requested id.
type taggedRetriever struct{}

func (taggedRetriever) Retrieve(_ context.Context, queries []string, id string) ([]repository.RetrievalResult, error) {
	out := make([]repository.RetrievalResult, 0, len(queries))
	for i, q := range queries {
		out = append(out, repository.RetrievalResult{
			ChunkID:       id + "-" + string(rune('a'+i)),
			Content:       "indexed text about " + q,
			SourceURL:     "https://example.com/" + string(rune('a'+i)),
			CorrelationID: id,
			Score:         0.9,
		})
	}
	return out, nil
}
