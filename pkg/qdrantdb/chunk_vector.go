package qdrantdb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fynex/repository"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
)

const (
	payloadContent       = "content"
	payloadSource        = "source"
	payloadCorrelationID = "correlationId"
	payloadMetadata      = "metadata"
)

// ErrDimensionMismatch is returned when a vector does not have the size the
// store was configured with. Every operation resolves its collection from that
// size, so accepting other sizes would split writes and counts apart.
var ErrDimensionMismatch = errors.New("vector size does not match configured dimensions")

// MismatchPolicy decides what happens when an existing collection was built
// for a different vector size.
type MismatchPolicy string

const (
	MismatchRecreate MismatchPolicy = "recreate"
	MismatchVersion  MismatchPolicy = "version"
)

// pointsAPI is the subset of *qdrant.Client used by ChunkStore.
type pointsAPI interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	GetCollectionInfo(ctx context.Context, collectionName string) (*qdrant.CollectionInfo, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	DeleteCollection(ctx context.Context, collectionName string) error
	CreateFieldIndex(ctx context.Context, request *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
}

// ChunkStore keeps document chunks in a single cosine collection tagged by
// correlation id.
type ChunkStore struct {
	client   pointsAPI
	baseName string
	dims     int
	policy   MismatchPolicy
	logger   *zap.Logger

	mu      sync.Mutex
	ensured map[string]bool
}

var (
	_ repository.ChunkVectorRepo = (*ChunkStore)(nil)
	_ repository.ChunkSearchRepo = (*ChunkStore)(nil)
)

func NewChunkStore(client pointsAPI, collection string, dims int, policy MismatchPolicy, logger *zap.Logger) *ChunkStore {
	if policy == "" {
		policy = MismatchRecreate
	}
	return &ChunkStore{
		client:   client,
		baseName: collection,
		dims:     dims,
		policy:   policy,
		logger:   logger,
		ensured:  make(map[string]bool),
	}
}

// CollectionName resolves the effective collection name for a vector size.
// Under the version policy each size gets its own collection.
func (s *ChunkStore) CollectionName(dims int) string {
	if s.policy == MismatchVersion {
		return fmt.Sprintf("%s_d%d", s.baseName, dims)
	}
	return s.baseName
}

func (s *ChunkStore) EnsureCollection(ctx context.Context, dims int) (string, error) {
	if dims <= 0 {
		return "", fmt.Errorf("invalid vector size %d", dims)
	}
	if err := s.checkSize(dims); err != nil {
		return "", err
	}
	name := s.CollectionName(dims)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured[name] {
		return name, nil
	}

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return "", fmt.Errorf("err check collection %s: %w", name, err)
	}

	if exists {
		info, err := s.client.GetCollectionInfo(ctx, name)
		if err != nil {
			return "", fmt.Errorf("err get collection info %s: %w", name, err)
		}
		current := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if current == uint64(dims) {
			s.ensured[name] = true
			return name, nil
		}
		if s.policy != MismatchRecreate {
			return "", fmt.Errorf("collection %s has vector size %d, want %d", name, current, dims)
		}
		// destroys every chunk stored under the old size
		s.logger.Warn("vector size mismatch, recreating collection",
			zap.String("collection", name),
			zap.Uint64("current_size", current),
			zap.Int("wanted_size", dims))
		if err := s.client.DeleteCollection(ctx, name); err != nil {
			return "", fmt.Errorf("err delete collection %s: %w", name, err)
		}
	}

	if err := s.create(ctx, name, dims); err != nil {
		return "", err
	}
	s.ensured[name] = true
	return name, nil
}

func (s *ChunkStore) create(ctx context.Context, name string, dims int) error {
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("err create collection %s: %w", name, err)
	}

	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: name,
		FieldName:      payloadCorrelationID,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("err create %s index: %w", payloadCorrelationID, err)
	}

	s.logger.Info("collection created", zap.String("collection", name), zap.Int("size", dims))
	return nil
}

// UpsertChunks writes chunks as a single batch and waits for the write to be applied.
func (s *ChunkStore) UpsertChunks(ctx context.Context, chunks []repository.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	dims := len(chunks[0].Vector)
	if err := s.checkSize(dims); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Vector) != dims {
			return fmt.Errorf("chunk %s has vector size %d, batch uses %d", c.ID, len(c.Vector), dims)
		}
		payload, err := chunkPayload(c)
		if err != nil {
			return fmt.Errorf("err build payload for chunk %s: %w", c.ID, err)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(c.ID),
			Vectors: qdrant.NewVectorsDense(c.Vector),
			Payload: payload,
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.CollectionName(dims),
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("err upsert %d chunks: %w", len(points), err)
	}
	return nil
}

func (s *ChunkStore) SearchSimilar(ctx context.Context, vector []float32, correlationID string, limit int) ([]repository.RetrievalResult, error) {
	if len(vector) == 0 {
		return nil, errors.New("empty query vector")
	}
	if err := s.checkSize(len(vector)); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.CollectionName(len(vector)),
		Query:          qdrant.NewQuery(vector...),
		Filter:         correlationFilter(correlationID),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("err query collection: %w", err)
	}

	results := make([]repository.RetrievalResult, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		results = append(results, repository.RetrievalResult{
			ChunkID:       pointID(p.GetId()),
			Content:       payload[payloadContent].GetStringValue(),
			SourceURL:     payload[payloadSource].GetStringValue(),
			CorrelationID: payload[payloadCorrelationID].GetStringValue(),
			Score:         p.GetScore(),
		})
	}
	return results, nil
}

// CountByCorrelation returns the exact number of chunks tagged with correlationID.
func (s *ChunkStore) CountByCorrelation(ctx context.Context, correlationID string) (uint64, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.CollectionName(s.dims),
		Filter:         correlationFilter(correlationID),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("err count chunks: %w", err)
	}
	return n, nil
}

func (s *ChunkStore) checkSize(n int) error {
	if s.dims > 0 && n != s.dims {
		return fmt.Errorf("%w: got %d, want %d (check embedding.dimensions)", ErrDimensionMismatch, n, s.dims)
	}
	return nil
}

func correlationFilter(correlationID string) *qdrant.Filter {
	if correlationID == "" {
		return nil
	}
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(payloadCorrelationID, correlationID)},
	}
}

func chunkPayload(c repository.DocumentChunk) (map[string]*qdrant.Value, error) {
	md := map[string]any{
		payloadContent:       c.Content,
		payloadSource:        c.SourceURL,
		payloadCorrelationID: c.CorrelationID,
	}
	if len(c.Metadata) > 0 {
		md[payloadMetadata] = c.Metadata
	}
	return qdrant.TryValueMap(md)
}

func pointID(id *qdrant.PointId) string {
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprintf("%d", id.GetNum())
}
