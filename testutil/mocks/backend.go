// Package mocks provides test doubles for the pipeline's external
// collaborators: the chat backend, the vector indices, and the re-ranking
// service.
package mocks

import (
	"context"
	"sync"

	"github.com/tech-enerzal/enerzal/providers"
	"github.com/tech-enerzal/enerzal/rag"
	"github.com/tech-enerzal/enerzal/types"
)

// ChatBackend is a mock chat provider supporting fixed replies, scripted
// stream chunks, and error injection.
type ChatBackend struct {
	mu sync.Mutex

	// Reply is returned by Completion.
	Reply string
	// CompletionErr fails Completion when set.
	CompletionErr error

	// Chunks are emitted by Stream in order.
	Chunks []providers.StreamChunk
	// StreamErr fails Stream at open time when set.
	StreamErr error

	completionCalls []*providers.ChatRequest
	streamCalls     []*providers.ChatRequest
}

// Completion returns the configured reply as an assistant message.
func (b *ChatBackend) Completion(_ context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	b.mu.Lock()
	b.completionCalls = append(b.completionCalls, req)
	b.mu.Unlock()

	if b.CompletionErr != nil {
		return nil, b.CompletionErr
	}
	return &providers.ChatResponse{
		Model:   req.Model,
		Message: types.NewAssistantMessage(b.Reply),
	}, nil
}

// Stream emits the configured chunks and closes.
func (b *ChatBackend) Stream(ctx context.Context, req *providers.ChatRequest) (<-chan providers.StreamChunk, error) {
	b.mu.Lock()
	b.streamCalls = append(b.streamCalls, req)
	b.mu.Unlock()

	if b.StreamErr != nil {
		return nil, b.StreamErr
	}

	ch := make(chan providers.StreamChunk)
	go func() {
		defer close(ch)
		for _, chunk := range b.Chunks {
			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// CompletionCalls returns the recorded non-streaming requests.
func (b *ChatBackend) CompletionCalls() []*providers.ChatRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*providers.ChatRequest(nil), b.completionCalls...)
}

// StreamCalls returns the recorded streaming requests.
func (b *ChatBackend) StreamCalls() []*providers.ChatRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*providers.ChatRequest(nil), b.streamCalls...)
}

// VectorStore is a mock index returning scripted results per call.
type VectorStore struct {
	mu sync.Mutex

	// SearchFunc overrides result selection when set.
	SearchFunc func(query string, topK int, filter map[string]string) ([]rag.Document, error)
	// Results is returned by every search when SearchFunc is nil.
	Results []rag.Document
	// Err fails every search when set.
	Err error

	searches []SearchCall
}

// SearchCall records one similarity search.
type SearchCall struct {
	Query  string
	TopK   int
	Filter map[string]string
}

// AddDocuments records nothing; mock indices are pre-scripted.
func (s *VectorStore) AddDocuments(context.Context, []rag.Document) error { return nil }

// SimilaritySearch returns the scripted results.
func (s *VectorStore) SimilaritySearch(_ context.Context, query string, topK int, filter map[string]string) ([]rag.Document, error) {
	s.mu.Lock()
	s.searches = append(s.searches, SearchCall{Query: query, TopK: topK, Filter: filter})
	s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	if s.SearchFunc != nil {
		return s.SearchFunc(query, topK, filter)
	}
	return s.Results, nil
}

// Count returns the scripted result count.
func (s *VectorStore) Count(context.Context) (int, error) { return len(s.Results), nil }

// Searches returns the recorded search calls.
func (s *VectorStore) Searches() []SearchCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SearchCall(nil), s.searches...)
}

// RerankBackend is a mock re-ranking provider.
type RerankBackend struct {
	mu sync.Mutex

	// Results are returned by every call, already ordered by descending score.
	Results []rag.RerankResult
	// Err fails every call when set.
	Err error

	calls []*rag.RerankRequest
}

// Rerank returns the scripted results.
func (r *RerankBackend) Rerank(_ context.Context, req *rag.RerankRequest) ([]rag.RerankResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, req)
	r.mu.Unlock()

	if r.Err != nil {
		return nil, r.Err
	}
	return r.Results, nil
}

// Name implements rag.RerankProvider.
func (r *RerankBackend) Name() string { return "mock-rerank" }

// Calls returns the recorded rerank requests.
func (r *RerankBackend) Calls() []*rag.RerankRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*rag.RerankRequest(nil), r.calls...)
}
