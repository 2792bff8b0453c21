package qdrantdb

import (
	"context"
	"errors"
	"testing"

	"fynex/repository"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePoints struct {
	sizes     map[string]uint64
	points    map[string][]*qdrant.PointStruct
	indexes   []string
	deleted   []string
	upsertErr error
	countErr  error
}

func newFakePoints() *fakePoints {
	return &fakePoints{sizes: map[string]uint64{}, points: map[string][]*qdrant.PointStruct{}}
}

func (f *fakePoints) CollectionExists(_ context.Context, name string) (bool, error) {
	_, ok := f.sizes[name]
	return ok, nil
}

func (f *fakePoints) GetCollectionInfo(_ context.Context, name string) (*qdrant.CollectionInfo, error) {
	return &qdrant.CollectionInfo{Config: &qdrant.CollectionConfig{Params: &qdrant.CollectionParams{
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{Size: f.sizes[name]}),
	}}}, nil
}

func (f *fakePoints) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	f.sizes[req.GetCollectionName()] = req.GetVectorsConfig().GetParams().GetSize()
	return nil
}

func (f *fakePoints) DeleteCollection(_ context.Context, name string) error {
	delete(f.sizes, name)
	delete(f.points, name)
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakePoints) CreateFieldIndex(_ context.Context, req *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error) {
	f.indexes = append(f.indexes, req.GetFieldName())
	return &qdrant.UpdateResult{}, nil
}

func (f *fakePoints) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.points[req.GetCollectionName()] = append(f.points[req.GetCollectionName()], req.GetPoints()...)
	return &qdrant.UpdateResult{}, nil
}

func matches(p *qdrant.PointStruct, filter *qdrant.Filter) bool {
	for _, c := range filter.GetMust() {
		field := c.GetField()
		if p.GetPayload()[field.GetKey()].GetStringValue() != field.GetMatch().GetKeyword() {
			return false
		}
	}
	return true
}

func (f *fakePoints) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	var out []*qdrant.ScoredPoint
	for i, p := range f.points[req.GetCollectionName()] {
		if !matches(p, req.GetFilter()) {
			continue
		}
		out = append(out, &qdrant.ScoredPoint{Id: p.GetId(), Payload: p.GetPayload(), Score: 1 - float32(i)*0.1})
		if uint64(len(out)) == req.GetLimit() {
			break
		}
	}
	return out, nil
}

func (f *fakePoints) Count(_ context.Context, req *qdrant.CountPoints) (uint64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	var n uint64
	for _, p := range f.points[req.GetCollectionName()] {
		if matches(p, req.GetFilter()) {
			n++
		}
	}
	return n, nil
}

func chunk(correlationID, content string, dims int) repository.DocumentChunk {
	return repository.DocumentChunk{
		ID:            uuid.NewString(),
		Vector:        make([]float32, dims),
		Content:       content,
		SourceURL:     "https://example.com/" + content,
		CorrelationID: correlationID,
		Metadata:      map[string]any{"chunkIndex": 0},
	}
}

func TestEnsureCollection_CreatesWithIndex(t *testing.T) {
	fake := newFakePoints()
	store := NewChunkStore(fake, "financial_docs", 4, MismatchRecreate, zap.NewNop())

	name, err := store.EnsureCollection(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, "financial_docs", name)
	assert.EqualValues(t, 4, fake.sizes["financial_docs"])
	assert.Equal(t, []string{"correlationId"}, fake.indexes)

	_, err = store.EnsureCollection(context.Background(), 4)
	require.NoError(t, err)
	assert.Len(t, fake.indexes, 1)
}

func TestEnsureCollection_RecreatesOnMismatch(t *testing.T) {
	fake := newFakePoints()
	fake.sizes["financial_docs"] = 384
	fake.points["financial_docs"] = []*qdrant.PointStruct{{Id: qdrant.NewID(uuid.NewString())}}

	store := NewChunkStore(fake, "financial_docs", 768, MismatchRecreate, zap.NewNop())
	_, err := store.EnsureCollection(context.Background(), 768)
	require.NoError(t, err)

	assert.Equal(t, []string{"financial_docs"}, fake.deleted)
	assert.EqualValues(t, 768, fake.sizes["financial_docs"])
	assert.Empty(t, fake.points["financial_docs"])
}

func TestEnsureCollection_VersionKeepsOldCollection(t *testing.T) {
	fake := newFakePoints()
	fake.sizes["financial_docs"] = 384

	store := NewChunkStore(fake, "financial_docs", 768, MismatchVersion, zap.NewNop())
	name, err := store.EnsureCollection(context.Background(), 768)
	require.NoError(t, err)

	assert.Equal(t, "financial_docs_d768", name)
	assert.Empty(t, fake.deleted)
	assert.EqualValues(t, 384, fake.sizes["financial_docs"])
	assert.EqualValues(t, 768, fake.sizes["financial_docs_d768"])
}

func TestWriteThenReadByCorrelation(t *testing.T) {
	fake := newFakePoints()
	store := NewChunkStore(fake, "financial_docs", 4, MismatchRecreate, zap.NewNop())
	ctx := context.Background()

	_, err := store.EnsureCollection(ctx, 4)
	require.NoError(t, err)
	require.NoError(t, store.UpsertChunks(ctx, []repository.DocumentChunk{
		chunk("job-a", "a1", 4), chunk("job-b", "b1", 4), chunk("job-a", "a2", 4),
	}))

	n, err := store.CountByCorrelation(ctx, "job-a")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	results, err := store.SearchSimilar(ctx, make([]float32, 4), "job-a", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "job-a", r.CorrelationID)
		assert.NotEmpty(t, r.ChunkID)
	}
	assert.Equal(t, "a1", results[0].Content)
	assert.Equal(t, "https://example.com/a1", results[0].SourceURL)
}

func TestUpsertChunks_RejectsMixedSizes(t *testing.T) {
	store := NewChunkStore(newFakePoints(), "financial_docs", 4, MismatchRecreate, zap.NewNop())
	err := store.UpsertChunks(context.Background(), []repository.DocumentChunk{
		chunk("job", "a", 4), chunk("job", "b", 3),
	})
	assert.Error(t, err)
}

func TestUpsertChunks_PropagatesError(t *testing.T) {
	fake := newFakePoints()
	fake.upsertErr = errors.New("unavailable")
	store := NewChunkStore(fake, "financial_docs", 4, MismatchRecreate, zap.NewNop())

	err := store.UpsertChunks(context.Background(), []repository.DocumentChunk{chunk("job", "a", 4)})
	assert.ErrorIs(t, err, fake.upsertErr)
	assert.NoError(t, store.UpsertChunks(context.Background(), nil))
}

func TestVersionPolicy_WritesAndCountsShareCollection(t *testing.T) {
	fake := newFakePoints()
	store := NewChunkStore(fake, "financial_docs", 768, MismatchVersion, zap.NewNop())
	ctx := context.Background()

	_, err := store.EnsureCollection(ctx, 384)
	require.ErrorIs(t, err, ErrDimensionMismatch)
	err = store.UpsertChunks(ctx, []repository.DocumentChunk{chunk("job-a", "small", 384)})
	require.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = store.SearchSimilar(ctx, make([]float32, 384), "job-a", 5)
	require.ErrorIs(t, err, ErrDimensionMismatch)
	assert.NotContains(t, fake.sizes, "financial_docs_d384")
	assert.Empty(t, fake.points)

	name, err := store.EnsureCollection(ctx, 768)
	require.NoError(t, err)
	require.NoError(t, store.UpsertChunks(ctx, []repository.DocumentChunk{chunk("job-a", "a1", 768)}))
	assert.Len(t, fake.points[name], 1)

	n, err := store.CountByCorrelation(ctx, "job-a")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
