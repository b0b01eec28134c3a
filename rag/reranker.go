package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tech-enerzal/enerzal/providers"
)

// Passage is one scoring unit sent to the re-ranking service.
type Passage struct {
	ID   string         `json:"id"`
	Text string         `json:"text"`
	Meta map[string]any `json:"meta,omitempty"`
}

// RerankRequest represents a request to score passages against a query.
type RerankRequest struct {
	Query    string    `json:"query"`
	Passages []Passage `json:"passages"`
	Model    string    `json:"model,omitempty"`
}

// RerankResult is one scored passage. Results arrive ordered by descending
// relevance score.
type RerankResult struct {
	Passage
	Score float64 `json:"score"`
}

// RerankProvider scores passages against a query with an external
// cross-encoder model.
type RerankProvider interface {
	Rerank(ctx context.Context, req *RerankRequest) ([]RerankResult, error)
	Name() string
}

// HTTPReranker implements RerankProvider against a FlashRank-style HTTP
// re-ranking service.
type HTTPReranker struct {
	cfg    providers.RerankerConfig
	client *http.Client
}

// NewHTTPReranker creates a new re-ranking service client.
func NewHTTPReranker(cfg providers.RerankerConfig) *HTTPReranker {
	if cfg.Model == "" {
		cfg.Model = "rank-T5-flan"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPReranker{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *HTTPReranker) Name() string { return "flashrank" }

type rerankResponse struct {
	Results []RerankResult `json:"results"`
}

// Rerank scores req.Passages against req.Query.
func (p *HTTPReranker) Rerank(ctx context.Context, req *RerankRequest) ([]RerankResult, error) {
	if req.Model == "" {
		req.Model = p.cfg.Model
	}

	payload, _ := json.Marshal(req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.cfg.BaseURL, "/")+"/v1/rerank",
		bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank error: status=%d body=%s", resp.StatusCode, string(body))
	}

	var rResp rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&rResp); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}
	return rResp.Results, nil
}

// Reranker selects the most relevant candidates through an external scorer.
// Its only responsibilities are building the passage batch and truncating to
// TopN after the scorer's own ordering.
type Reranker struct {
	provider RerankProvider
	topN     int
	logger   *zap.Logger
}

// NewReranker creates a Reranker that keeps the topN highest-scored
// candidates.
func NewReranker(provider RerankProvider, topN int, logger *zap.Logger) *Reranker {
	return &Reranker{
		provider: provider,
		topN:     topN,
		logger:   logger,
	}
}

// Rerank scores candidates against query and returns the top N ranked by
// descending score, ties keeping the scorer's order. An empty candidate set
// returns an empty sequence without invoking the external scorer.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []Document) ([]RankedDocument, error) {
	if len(candidates) == 0 {
		return []RankedDocument{}, nil
	}

	passages := make([]Passage, 0, len(candidates))
	for _, doc := range candidates {
		passages = append(passages, Passage{
			ID:   doc.ID,
			Text: doc.Content,
			Meta: doc.Metadata,
		})
	}

	results, err := r.provider.Rerank(ctx, &RerankRequest{Query: query, Passages: passages})
	if err != nil {
		return nil, fmt.Errorf("rerank %d passages: %w", len(passages), err)
	}

	if r.topN < len(results) {
		results = results[:r.topN]
	}

	ranked := make([]RankedDocument, 0, len(results))
	for _, res := range results {
		ranked = append(ranked, RankedDocument{
			Document: Document{
				ID:       res.ID,
				Content:  res.Text,
				Metadata: res.Meta,
			},
			Score: res.Score,
		})
	}
	r.logger.Debug("rerank complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("selected", len(ranked)))
	return ranked, nil
}
