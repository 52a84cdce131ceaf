package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsense/internal/domain"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Name() string                                      { return "stub" }
func (s *stubEmbedder) Prepare(ctx context.Context, corpus []string) error { return nil }
func (s *stubEmbedder) Dimension() int                                    { return len(s.vec) }
func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.vec, s.err
}

type stubStore struct {
	results     []domain.Candidate
	err         error
	searchCalls int
	lastTopK    int
}

func (s *stubStore) Init(ctx context.Context, dimension int) error { return nil }
func (s *stubStore) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	return nil
}
func (s *stubStore) Search(ctx context.Context, vector []float32, topK int) ([]domain.Candidate, error) {
	s.searchCalls++
	s.lastTopK = topK
	return s.results, s.err
}
func (s *stubStore) Clear(ctx context.Context) error      { return nil }
func (s *stubStore) Count(ctx context.Context) (int, error) { return len(s.results), nil }

func TestRetrieveSelectsTopK(t *testing.T) {
	store := &stubStore{results: []domain.Candidate{
		cand("chunk one about pumps", 0.9),
		cand("chunk two about valves", 0.8),
		cand("chunk three about tanks", 0.7),
	}}
	r := New(&stubEmbedder{vec: []float32{0.5, 0.5}}, store, Config{TopK: 2})

	got := r.Retrieve(context.Background(), "pumps")
	require.Len(t, got, 2)
	assert.Equal(t, 1, store.searchCalls)
	assert.Equal(t, 4, store.lastTopK, "fetch pool defaults to 2x top-k")
}

func TestRetrieveDegenerateEmbeddingSkipsStore(t *testing.T) {
	store := &stubStore{results: []domain.Candidate{cand("x", 0.9)}}
	r := New(&stubEmbedder{vec: []float32{0, 0, 0}}, store, Config{})

	got := r.Retrieve(context.Background(), "anything")
	assert.Empty(t, got)
	assert.Zero(t, store.searchCalls, "zero vector must not hit the store")
}

func TestRetrieveEmbedErrorDegrades(t *testing.T) {
	store := &stubStore{}
	r := New(&stubEmbedder{err: errors.New("provider down")}, store, Config{})

	assert.Empty(t, r.Retrieve(context.Background(), "q"))
	assert.Zero(t, store.searchCalls)
}

func TestRetrieveSearchErrorDegrades(t *testing.T) {
	store := &stubStore{err: errors.New("index corrupt")}
	r := New(&stubEmbedder{vec: []float32{1}}, store, Config{})

	assert.Empty(t, r.Retrieve(context.Background(), "q"))
}

func TestRetrieveAppliesThreshold(t *testing.T) {
	store := &stubStore{results: []domain.Candidate{
		cand("relevant chunk content", 0.9),
		cand("barely related chunk", 0.05),
	}}
	r := New(&stubEmbedder{vec: []float32{1}}, store, Config{TopK: 5, Threshold: 0.2})

	got := r.Retrieve(context.Background(), "q")
	require.Len(t, got, 1)
	assert.Equal(t, "relevant chunk content", got[0].Chunk.Content)
}

func TestRetrieveEmptyPool(t *testing.T) {
	store := &stubStore{}
	r := New(&stubEmbedder{vec: []float32{1}}, store, Config{})
	assert.Empty(t, r.Retrieve(context.Background(), "q"))
}
