package rag

import (
	"context"
	"errors"
	"hash/fnv"
	"sort"
	"strings"
	"sync"

	"fynex/pkg/embedding"
	"fynex/queue"
	"fynex/repository"
	"fynex/search"

	"github.com/google/uuid"
)

const dims = 16

// bagEmbedder hashes words into a small bag-of-words vector.
type bagEmbedder struct {
	err error
}

func (e *bagEmbedder) GetEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, dims)
		for _, w := range strings.Fields(strings.ToLower(t)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(w))
			v[h.Sum32()%dims]++
		}
		out[i] = v
	}
	return out, nil
}

type memStore struct {
	mu       sync.Mutex
	chunks   []repository.DocumentChunk
	countErr []error
	counts   int
	// ignoreFilter makes SearchSimilar return chunks of every job.
	ignoreFilter bool
	failSearch   bool
}

func (s *memStore) add(chunks ...repository.DocumentChunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunks...)
}

func (s *memStore) CountByCorrelation(_ context.Context, id string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts++
	if len(s.countErr) > 0 {
		err := s.countErr[0]
		s.countErr = s.countErr[1:]
		if err != nil {
			return 0, err
		}
	}
	var n uint64
	for _, c := range s.chunks {
		if c.CorrelationID == id {
			n++
		}
	}
	return n, nil
}

func (s *memStore) SearchSimilar(_ context.Context, vector []float32, id string, limit int) ([]repository.RetrievalResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSearch {
		return nil, errors.New("store unavailable")
	}
	var out []repository.RetrievalResult
	for _, c := range s.chunks {
		if !s.ignoreFilter && c.CorrelationID != id {
			continue
		}
		out = append(out, repository.RetrievalResult{
			ChunkID:       c.ID,
			Content:       c.Content,
			SourceURL:     c.SourceURL,
			CorrelationID: c.CorrelationID,
			Score:         embedding.CosineSimilarity(vector, c.Vector),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) countCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

func makeChunk(e *bagEmbedder, correlationID, url, content string) repository.DocumentChunk {
	vecs, _ := e.GetEmbeddings(context.Background(), []string{content})
	return repository.DocumentChunk{
		ID:            uuid.NewString(),
		Vector:        vecs[0],
		Content:       content,
		SourceURL:     url,
		CorrelationID: correlationID,
	}
}

type fixedExpander struct {
	variants []string
}

func (f fixedExpander) Expand(_ context.Context, q string) []string {
	return append([]string{q}, f.variants...)
}

type mapSearcher struct {
	mu      sync.Mutex
	results map[string][]search.SearchResult
	err     error
	calls   []string
	options []map[string]string
}

func (s *mapSearcher) Search(_ context.Context, req *search.SearchRequest) ([]search.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req.Query)
	s.options = append(s.options, req.Options)
	if s.err != nil {
		return nil, s.err
	}
	return s.results[req.Query], nil
}

// workerEnqueuer records the job and, when index is set, plays the scraper by
// writing chunks for it in the background.
type workerEnqueuer struct {
	mu    sync.Mutex
	jobs  []*queue.ScrapeJob
	err   error
	index func(job *queue.ScrapeJob)
}

func (w *workerEnqueuer) Enqueue(_ context.Context, job *queue.ScrapeJob) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.jobs = append(w.jobs, job)
	if w.index != nil {
		go w.index(job)
	}
	return nil
}
