package rag

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RetrievalConfig fixes the candidate-set sizes of the two-stage scheme.
type RetrievalConfig struct {
	// KCoarse documents are fetched from the primary section index.
	KCoarse int `json:"k_coarse" yaml:"k_coarse"`

	// TopSections coarse results contribute their section_name to scoping.
	TopSections int `json:"top_sections" yaml:"top_sections"`

	// KPerSection FAQ documents are fetched per section query.
	KPerSection int `json:"k_per_section" yaml:"k_per_section"`
}

// DefaultRetrievalConfig returns the reference candidate-set sizes.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		KCoarse:     10,
		TopSections: 2,
		KPerSection: 10,
	}
}

// TwoStageRetriever narrows a broad search over the section index to a
// filtered search over the FAQ index scoped by the top coarse sections.
type TwoStageRetriever struct {
	sections VectorStore
	faqs     VectorStore
	config   RetrievalConfig
	logger   *zap.Logger
}

// NewTwoStageRetriever creates a retriever over the primary section index and
// the secondary FAQ index.
func NewTwoStageRetriever(sections, faqs VectorStore, config RetrievalConfig, logger *zap.Logger) *TwoStageRetriever {
	return &TwoStageRetriever{
		sections: sections,
		faqs:     faqs,
		config:   config,
		logger:   logger,
	}
}

// Coarse runs the unfiltered broad search over the section index. Results
// keep the index's own similarity order; fewer than KCoarse results, including
// zero, is not an error.
func (r *TwoStageRetriever) Coarse(ctx context.Context, query string) ([]Document, error) {
	docs, err := r.sections.SimilaritySearch(ctx, query, r.config.KCoarse, nil)
	if err != nil {
		return nil, fmt.Errorf("coarse search: %w", err)
	}
	r.logger.Debug("coarse search complete",
		zap.Int("k", r.config.KCoarse),
		zap.Int("results", len(docs)))
	return docs, nil
}

// SectionNames extracts the section_name of the top coarse results, one entry
// per result position. Duplicate names are kept: a repeated section among the
// top results produces a repeated scoped query, matching the reference
// behavior of the scheme.
func (r *TwoStageRetriever) SectionNames(coarse []Document) []string {
	top := r.config.TopSections
	if top > len(coarse) {
		top = len(coarse)
	}
	names := make([]string, 0, top)
	seen := make(map[string]bool, top)
	for _, doc := range coarse[:top] {
		name := doc.SectionName()
		if seen[name] {
			r.logger.Warn("duplicate section among top coarse results, FAQ query will repeat",
				zap.String("section", name))
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// Scoped runs one filtered FAQ search per section name and concatenates the
// results in section order. The per-section searches are independent reads
// and run concurrently; slot-indexed assembly preserves the input order. A
// section that matches nothing contributes zero candidates.
func (r *TwoStageRetriever) Scoped(ctx context.Context, query string, sections []string) ([]Document, error) {
	if len(sections) == 0 {
		return []Document{}, nil
	}

	slots := make([][]Document, len(sections))
	g, gctx := errgroup.WithContext(ctx)
	for i, section := range sections {
		g.Go(func() error {
			docs, err := r.faqs.SimilaritySearch(gctx, query, r.config.KPerSection, map[string]string{
				MetaSectionName: section,
			})
			if err != nil {
				return fmt.Errorf("scoped search for section %q: %w", section, err)
			}
			r.logger.Debug("scoped search complete",
				zap.String("section", section),
				zap.Int("results", len(docs)))
			slots[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Document, 0, len(sections)*r.config.KPerSection)
	for _, docs := range slots {
		out = append(out, docs...)
	}
	return out, nil
}
