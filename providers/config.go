// Package providers defines the shared request/response contract and
// configuration for the external model backends the pipeline talks to.
package providers

import "time"

// OllamaConfig configures the Ollama chat backend client.
type OllamaConfig struct {
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// KeepAlive is applied when a request carries no keep_alive of its own;
	// 0 unloads the model after each call, matching the reference deployment.
	KeepAlive int `json:"keep_alive" yaml:"keep_alive"`

	// RequestsPerSecond enables client-side rate limiting when > 0.
	RequestsPerSecond float64 `json:"requests_per_second,omitempty" yaml:"requests_per_second,omitempty"`
	Burst             int     `json:"burst,omitempty" yaml:"burst,omitempty"`
}

// EmbeddingConfig configures the embedding backend client.
type EmbeddingConfig struct {
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// RerankerConfig configures the cross-encoder re-ranking service client.
type RerankerConfig struct {
	BaseURL string        `json:"base_url" yaml:"base_url"`
	APIKey  string        `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}
