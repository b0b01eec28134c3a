package rag

// MetaSectionName is the metadata field used to scope fine-grained FAQ
// searches to a document section.
const MetaSectionName = "section_name"

// Document is a read-only snapshot of an index entry. Both retrieval stages
// produce documents; the pipeline never mutates the underlying index.
type Document struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float64      `json:"embedding,omitempty"`
}

// SectionName returns the section_name metadata field, or "" when absent.
func (d Document) SectionName() string {
	if d.Metadata == nil {
		return ""
	}
	if s, ok := d.Metadata[MetaSectionName].(string); ok {
		return s
	}
	return ""
}

// RankedDocument pairs a retrieval candidate with its re-ranking score.
type RankedDocument struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}
