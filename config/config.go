// Package config provides unified configuration loading for the Enerzal
// service: defaults, then a YAML file, then ENERZAL_-prefixed environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Ollama     OllamaConfig     `yaml:"ollama"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Reranker   RerankerConfig   `yaml:"reranker"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Redis      RedisConfig      `yaml:"redis"`
	Database   DatabaseConfig   `yaml:"database"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Development enables console encoding with stacktraces.
	Development bool `yaml:"development"`
}

// OllamaConfig configures the generation backend.
type OllamaConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Model             string        `yaml:"model"`
	Timeout           time.Duration `yaml:"timeout"`
	KeepAlive         int           `yaml:"keep_alive"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// ClassifierConfig configures the routing self-query call.
type ClassifierConfig struct {
	Model      string        `yaml:"model"`
	NumPredict int           `yaml:"num_predict"`
	CacheTTL   time.Duration `yaml:"cache_ttl"`
}

// EmbeddingConfig configures the embedding backend.
type EmbeddingConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// RerankerConfig configures the re-ranking service.
type RerankerConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
	TopN    int           `yaml:"top_n"`
}

// RetrievalConfig fixes the two-stage candidate-set sizes.
type RetrievalConfig struct {
	KCoarse     int `yaml:"k_coarse"`
	TopSections int `yaml:"top_sections"`
	KPerSection int `yaml:"k_per_section"`
}

// RedisConfig configures the optional routing verdict cache. An empty Addr
// disables caching.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DatabaseConfig configures the corpus database.
type DatabaseConfig struct {
	// Driver: sqlite or postgres.
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Ollama: OllamaConfig{
			BaseURL:   "http://localhost:11434",
			Model:     "default-model",
			Timeout:   120 * time.Second,
			KeepAlive: 0,
		},
		Classifier: ClassifierConfig{
			Model:      "gemma2:2b",
			NumPredict: 15,
			CacheTTL:   10 * time.Minute,
		},
		Embedding: EmbeddingConfig{
			BaseURL: "http://localhost:11434",
			Model:   "all-minilm",
			Timeout: 30 * time.Second,
		},
		Reranker: RerankerConfig{
			BaseURL: "http://localhost:7997",
			Model:   "rank-T5-flan",
			Timeout: 30 * time.Second,
			TopN:    3,
		},
		Retrieval: RetrievalConfig{
			KCoarse:     10,
			TopSections: 2,
			KPerSection: 10,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "enerzal.db",
		},
	}
}

// Load reads configuration with precedence defaults -> YAML file -> env.
// path may be empty to skip the file step.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides cfg from ENERZAL_-prefixed environment variables.
func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	setString("ENERZAL_SERVER_ADDR", &cfg.Server.Addr)
	setString("ENERZAL_LOG_LEVEL", &cfg.Log.Level)

	setString("ENERZAL_OLLAMA_BASE_URL", &cfg.Ollama.BaseURL)
	setString("ENERZAL_OLLAMA_MODEL", &cfg.Ollama.Model)
	setDuration("ENERZAL_OLLAMA_TIMEOUT", &cfg.Ollama.Timeout)

	setString("ENERZAL_CLASSIFIER_MODEL", &cfg.Classifier.Model)
	setInt("ENERZAL_CLASSIFIER_NUM_PREDICT", &cfg.Classifier.NumPredict)

	setString("ENERZAL_EMBEDDING_BASE_URL", &cfg.Embedding.BaseURL)
	setString("ENERZAL_EMBEDDING_MODEL", &cfg.Embedding.Model)

	setString("ENERZAL_RERANKER_BASE_URL", &cfg.Reranker.BaseURL)
	setString("ENERZAL_RERANKER_API_KEY", &cfg.Reranker.APIKey)
	setString("ENERZAL_RERANKER_MODEL", &cfg.Reranker.Model)
	setInt("ENERZAL_RERANKER_TOP_N", &cfg.Reranker.TopN)

	setInt("ENERZAL_RETRIEVAL_K_COARSE", &cfg.Retrieval.KCoarse)
	setInt("ENERZAL_RETRIEVAL_TOP_SECTIONS", &cfg.Retrieval.TopSections)
	setInt("ENERZAL_RETRIEVAL_K_PER_SECTION", &cfg.Retrieval.KPerSection)

	setString("ENERZAL_REDIS_ADDR", &cfg.Redis.Addr)
	setString("ENERZAL_REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("ENERZAL_REDIS_DB", &cfg.Redis.DB)

	setString("ENERZAL_DATABASE_DRIVER", &cfg.Database.Driver)
	setString("ENERZAL_DATABASE_DSN", &cfg.Database.DSN)
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Retrieval.KCoarse <= 0 {
		return fmt.Errorf("retrieval.k_coarse must be positive, got %d", c.Retrieval.KCoarse)
	}
	if c.Retrieval.TopSections <= 0 {
		return fmt.Errorf("retrieval.top_sections must be positive, got %d", c.Retrieval.TopSections)
	}
	if c.Retrieval.KPerSection <= 0 {
		return fmt.Errorf("retrieval.k_per_section must be positive, got %d", c.Retrieval.KPerSection)
	}
	if c.Reranker.TopN <= 0 {
		return fmt.Errorf("reranker.top_n must be positive, got %d", c.Reranker.TopN)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	return nil
}
