package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeEmbedder maps known texts to fixed vectors.
type fakeEmbedder struct {
	vectors map[string][]float64
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float64{0, 0, 1}, nil
}

func TestInMemoryVectorStore_AddEmbedsMissingVectors(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float64{
		"needs embedding": {1, 0, 0},
	}}
	store := NewInMemoryVectorStore(embedder, zap.NewNop())

	err := store.AddDocuments(context.Background(), []Document{
		{ID: "d1", Content: "needs embedding"},
		{ID: "d2", Content: "pre-embedded", Embedding: []float64{0, 1, 0}},
	})
	require.NoError(t, err)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestInMemoryVectorStore_AddEmbedError(t *testing.T) {
	store := NewInMemoryVectorStore(&fakeEmbedder{err: errors.New("embedder down")}, zap.NewNop())

	err := store.AddDocuments(context.Background(), []Document{{ID: "d1", Content: "text"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed document d1")
}

func TestInMemoryVectorStore_SimilaritySearchOrdering(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float64{
		"query": {1, 0, 0},
	}}
	store := NewInMemoryVectorStore(embedder, zap.NewNop())

	require.NoError(t, store.AddDocuments(context.Background(), []Document{
		{ID: "far", Content: "far", Embedding: []float64{0, 1, 0}},
		{ID: "near", Content: "near", Embedding: []float64{1, 0.1, 0}},
		{ID: "exact", Content: "exact", Embedding: []float64{1, 0, 0}},
	}))

	docs, err := store.SimilaritySearch(context.Background(), "query", 2, nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "exact", docs[0].ID)
	assert.Equal(t, "near", docs[1].ID)
}

func TestInMemoryVectorStore_SimilaritySearchFilter(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float64{"query": {1, 0, 0}}}
	store := NewInMemoryVectorStore(embedder, zap.NewNop())

	require.NoError(t, store.AddDocuments(context.Background(), []Document{
		{ID: "hr-1", Embedding: []float64{1, 0, 0}, Metadata: map[string]any{MetaSectionName: "HR"}},
		{ID: "it-1", Embedding: []float64{1, 0, 0}, Metadata: map[string]any{MetaSectionName: "IT"}},
		{ID: "bare", Embedding: []float64{1, 0, 0}},
	}))

	docs, err := store.SimilaritySearch(context.Background(), "query", 10, map[string]string{MetaSectionName: "HR"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "hr-1", docs[0].ID)

	docs, err = store.SimilaritySearch(context.Background(), "query", 10, map[string]string{MetaSectionName: "Finance"})
	require.NoError(t, err)
	assert.Empty(t, docs, "no match is an empty result, not an error")
}

func TestInMemoryVectorStore_TopKClamped(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float64{"query": {1, 0, 0}}}
	store := NewInMemoryVectorStore(embedder, zap.NewNop())

	require.NoError(t, store.AddDocuments(context.Background(), []Document{
		{ID: "d1", Embedding: []float64{1, 0, 0}},
	}))

	docs, err := store.SimilaritySearch(context.Background(), "query", 10, nil)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 0}, []float64{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float64{1, 0}, []float64{1}), "mismatched dimensions score zero")
	assert.Zero(t, cosineSimilarity([]float64{0, 0}, []float64{1, 0}), "zero vector scores zero")
}
