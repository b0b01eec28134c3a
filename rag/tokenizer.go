package rag

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// Tokenizer counts tokens for context-size accounting.
type Tokenizer interface {
	CountTokens(text string) int
}

// TiktokenTokenizer counts tokens with a tiktoken encoding. When the
// underlying encoder fails it falls back to a bytes/4 estimate and logs a
// warning.
type TiktokenTokenizer struct {
	encoding *tiktoken.Tiktoken
	logger   *zap.Logger
}

// NewTiktokenTokenizer creates a tokenizer for the given encoding name
// (for example "cl100k_base").
func NewTiktokenTokenizer(encodingName string, logger *zap.Logger) (*TiktokenTokenizer, error) {
	if encodingName == "" {
		encodingName = "cl100k_base"
	}
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("create tiktoken encoding %s: %w", encodingName, err)
	}
	return &TiktokenTokenizer{encoding: encoding, logger: logger}, nil
}

// CountTokens returns the number of tokens in text.
func (t *TiktokenTokenizer) CountTokens(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}

// EstimatorTokenizer approximates token counts without encoding data,
// for tests and deployments without tiktoken downloads.
type EstimatorTokenizer struct{}

// CountTokens estimates one token per four bytes.
func (EstimatorTokenizer) CountTokens(text string) int {
	return len(text) / 4
}
