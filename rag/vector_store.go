package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// VectorStore is a similarity-searchable document index. Implementations must
// support equality filtering on at least the section_name metadata field and
// must be safe for concurrent reads; the pipeline never writes after startup.
type VectorStore interface {
	// AddDocuments indexes documents, embedding any that arrive without a
	// vector. Write path is startup-only.
	AddDocuments(ctx context.Context, docs []Document) error

	// SimilaritySearch returns up to topK documents ordered by descending
	// similarity to query. A nil or empty filter searches the full corpus;
	// otherwise every entry must match all filter fields exactly. Fewer than
	// topK results is not an error.
	SimilaritySearch(ctx context.Context, query string, topK int, filter map[string]string) ([]Document, error)

	// Count returns the number of indexed documents.
	Count(ctx context.Context) (int, error)
}

// InMemoryVectorStore holds embedded documents in process memory and ranks
// them by cosine similarity.
type InMemoryVectorStore struct {
	embedder  Embedder
	documents []Document
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewInMemoryVectorStore creates an in-memory vector store around embedder.
func NewInMemoryVectorStore(embedder Embedder, logger *zap.Logger) *InMemoryVectorStore {
	return &InMemoryVectorStore{
		embedder:  embedder,
		documents: make([]Document, 0),
		logger:    logger,
	}
}

// AddDocuments indexes docs, embedding any document without a vector.
func (s *InMemoryVectorStore) AddDocuments(ctx context.Context, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range docs {
		if doc.Embedding == nil {
			embedding, err := s.embedder.Embed(ctx, doc.Content)
			if err != nil {
				return fmt.Errorf("embed document %s: %w", doc.ID, err)
			}
			doc.Embedding = embedding
		}
		s.documents = append(s.documents, doc)
	}

	s.logger.Info("documents added to vector store",
		zap.Int("count", len(docs)),
		zap.Int("total", len(s.documents)))

	return nil
}

// SimilaritySearch embeds query and returns the topK most similar documents,
// optionally restricted to entries whose metadata matches filter exactly.
func (s *InMemoryVectorStore) SimilaritySearch(ctx context.Context, query string, topK int, filter map[string]string) ([]Document, error) {
	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		doc   Document
		score float64
	}
	results := make([]scored, 0, len(s.documents))

	for _, doc := range s.documents {
		if doc.Embedding == nil {
			continue
		}
		if !matchesFilter(doc, filter) {
			continue
		}
		results = append(results, scored{doc: doc, score: cosineSimilarity(queryEmbedding, doc.Embedding)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	if topK > len(results) {
		topK = len(results)
	}
	out := make([]Document, 0, topK)
	for _, r := range results[:topK] {
		out = append(out, r.doc)
	}
	return out, nil
}

// Count returns the number of indexed documents.
func (s *InMemoryVectorStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents), nil
}

// matchesFilter reports whether every filter field equals the document's
// corresponding metadata value.
func matchesFilter(doc Document, filter map[string]string) bool {
	if len(filter) == 0 {
		return true
	}
	if doc.Metadata == nil {
		return false
	}
	for field, want := range filter {
		got, ok := doc.Metadata[field].(string)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// cosineSimilarity computes the cosine similarity of two vectors.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
