package rag

import (
	"context"
	"errors"
	"testing"
	"time"

	"fynex/queue"
	"fynex/search"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func link(url, title string) search.SearchResult {
	return search.SearchResult{URL: url, Title: title, Description: "snippet for " + title}
}

type testRig struct {
	emb      *bagEmbedder
	store    *memStore
	searcher *mapSearcher
	enqueuer *workerEnqueuer
	pipeline *Pipeline
}

func newRig(maxAttempts int) *testRig {
	emb := &bagEmbedder{}
	store := &memStore{}
	searcher := &mapSearcher{results: map[string][]search.SearchResult{}}
	enqueuer := &workerEnqueuer{}
	logger := zap.NewNop()

	p := NewPipeline(
		fixedExpander{variants: []string{"reliance share price sentiment", "reliance fundamentals", "reliance latest news"}},
		searcher,
		enqueuer,
		NewPoller(store, 5*time.Millisecond, maxAttempts, logger),
		NewRetriever(emb, store, RetrieverConfig{SearchLimit: 10, PerQueryTopK: 3, MaxChunks: 8}, logger),
		PipelineConfig{
			MaxSearchedQueries: 2,
			ResultsPerQuery:    5,
			MaxSnippets:        5,
			SearchOptions:      map[string]string{"gl": "in", "hl": "en"},
		},
		logger,
	)
	return &testRig{emb: emb, store: store, searcher: searcher, enqueuer: enqueuer, pipeline: p}
}

func TestResearch_EndToEnd(t *testing.T) {
	rig := newRig(50)
	rig.searcher.results["reliance industries outlook"] = []search.SearchResult{
		link("https://a.com/1", "A1"), link("https://b.com/2", "B2"), link("https://c.com/3", "C3"),
	}
	rig.searcher.results["reliance share price sentiment"] = []search.SearchResult{
		link("https://a.com/1", "A1"), link("https://c.com/3", "C3"),
	}
	rig.searcher.results["reliance fundamentals"] = []search.SearchResult{link("https://never.com", "unsearched")}
	rig.enqueuer.index = func(job *queue.ScrapeJob) {
		time.Sleep(7 * time.Millisecond)
		rig.store.add(
			makeChunk(rig.emb, job.CorrelationID, job.URLs[0], "reliance industries outlook remains positive"),
			makeChunk(rig.emb, job.CorrelationID, job.URLs[1], "reliance fundamentals strong balance sheet"),
		)
	}
	rig.store.add(makeChunk(rig.emb, "someone-else", "https://x.com", "reliance industries outlook"))

	res, err := rig.pipeline.Research(context.Background(), "  Reliance Industries outlook?! ")
	require.NoError(t, err)

	assert.Equal(t, "reliance industries outlook", res.Query)
	assert.Equal(t, "reliance industries outlook", res.Queries[0])
	assert.Len(t, res.Queries, 4)
	assert.Equal(t, []string{"reliance industries outlook", "reliance share price sentiment"}, rig.searcher.calls)
	for _, opts := range rig.searcher.options {
		assert.Equal(t, map[string]string{"gl": "in", "hl": "en"}, opts)
	}

	require.Len(t, rig.enqueuer.jobs, 1)
	job := rig.enqueuer.jobs[0]
	assert.ElementsMatch(t, []string{"https://a.com/1", "https://b.com/2", "https://c.com/3"}, job.URLs)
	assert.Equal(t, job.CorrelationID, res.CorrelationID)

	assert.True(t, res.Enqueued)
	assert.True(t, res.FoundDocs)
	require.NotEmpty(t, res.Chunks)
	assert.LessOrEqual(t, len(res.Chunks), 8)
	for _, c := range res.Chunks {
		assert.Equal(t, job.CorrelationID, c.CorrelationID)
	}
	assert.Len(t, res.Snippets, 5)
	assert.Contains(t, res.Context, "reliance")

	out := res.ToolResult()
	assert.Contains(t, out, "Relevant information")
	assert.Contains(t, out, "URL: https://a.com/1")
}

func TestResearch_ZeroResultsFallsBack(t *testing.T) {
	rig := newRig(3)

	res, err := rig.pipeline.Research(context.Background(), "obscure microcap")
	require.NoError(t, err)

	require.Len(t, rig.enqueuer.jobs, 1)
	assert.Empty(t, rig.enqueuer.jobs[0].URLs)
	assert.True(t, res.Enqueued)
	assert.False(t, res.FoundDocs)
	assert.Empty(t, res.Chunks)
	assert.Empty(t, res.Snippets)
	assert.Equal(t, 3, rig.store.countCalls())
	assert.Contains(t, res.ToolResult(), "No web information could be found")
}

func TestResearch_SearchAndEnqueueFailuresDegrade(t *testing.T) {
	rig := newRig(100)
	rig.searcher.err = errors.New("serpapi 500")
	rig.enqueuer.err = errors.New("broker down")

	res, err := rig.pipeline.Research(context.Background(), "hdfc bank")
	require.NoError(t, err)
	assert.False(t, res.Enqueued)
	assert.False(t, res.FoundDocs)
	assert.Zero(t, rig.store.countCalls(), "polling skipped when enqueue fails")
}

func TestResearch_SnippetsOnlyWhenNothingIndexed(t *testing.T) {
	rig := newRig(2)
	rig.searcher.results["infy results"] = []search.SearchResult{link("https://a.com", "Infosys Q2")}

	res, err := rig.pipeline.Research(context.Background(), "INFY results")
	require.NoError(t, err)
	assert.False(t, res.FoundDocs)
	out := res.ToolResult()
	assert.NotContains(t, out, "Relevant information")
	assert.Contains(t, out, "1. Infosys Q2")
}

func TestResearch_EmptyQuery(t *testing.T) {
	rig := newRig(1)
	_, err := rig.pipeline.Research(context.Background(), " ?! ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestResearch_CancelledWhileWaiting(t *testing.T) {
	rig := newRig(1000)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := rig.pipeline.Research(ctx, "wipro")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
