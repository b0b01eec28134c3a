// Command enerzal runs the Enerzal RAG chat service: it loads the corpus into
// the section and FAQ vector indices, wires the retrieval pipeline, and
// serves the streaming chat endpoint.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tech-enerzal/enerzal/config"
	"github.com/tech-enerzal/enerzal/internal/metrics"
	"github.com/tech-enerzal/enerzal/internal/server"
	"github.com/tech-enerzal/enerzal/pipeline"
	"github.com/tech-enerzal/enerzal/providers"
	"github.com/tech-enerzal/enerzal/providers/ollama"
	"github.com/tech-enerzal/enerzal/rag"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	logger, err := buildLogger(cfg.Log)
	if err != nil {
		zap.NewExample().Fatal("failed to build logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service failed", zap.Error(err))
	}
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Corpus and indices: loaded once at startup, read-only afterwards.
	db, err := rag.OpenCorpusDB(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	corpus := rag.NewCorpusStore(db, logger)
	if err := corpus.Migrate(); err != nil {
		return err
	}

	embedder := rag.NewOllamaEmbedder(providers.EmbeddingConfig{
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
		Timeout: cfg.Embedding.Timeout,
	})
	sectionIndex := rag.NewInMemoryVectorStore(embedder, logger.Named("sections"))
	faqIndex := rag.NewInMemoryVectorStore(embedder, logger.Named("faqs"))
	if err := corpus.LoadInto(ctx, sectionIndex, faqIndex); err != nil {
		return err
	}

	// Model backends.
	chatProvider := ollama.NewProvider(providers.OllamaConfig{
		BaseURL:           cfg.Ollama.BaseURL,
		Model:             cfg.Ollama.Model,
		Timeout:           cfg.Ollama.Timeout,
		KeepAlive:         cfg.Ollama.KeepAlive,
		RequestsPerSecond: cfg.Ollama.RequestsPerSecond,
		Burst:             cfg.Ollama.Burst,
	}, logger.Named("ollama"))

	rerankProvider := rag.NewHTTPReranker(providers.RerankerConfig{
		BaseURL: cfg.Reranker.BaseURL,
		APIKey:  cfg.Reranker.APIKey,
		Model:   cfg.Reranker.Model,
		Timeout: cfg.Reranker.Timeout,
	})

	var verdictCache rag.VerdictCache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		verdictCache = rag.NewRedisVerdictCache(client, cfg.Classifier.CacheTTL, logger.Named("verdict_cache"))
	}

	// Pipeline components.
	classifier := rag.NewRoutingClassifier(chatProvider, verdictCache, rag.ClassifierConfig{
		Model:      cfg.Classifier.Model,
		NumPredict: cfg.Classifier.NumPredict,
	}, logger.Named("classifier"))

	retriever := rag.NewTwoStageRetriever(sectionIndex, faqIndex, rag.RetrievalConfig{
		KCoarse:     cfg.Retrieval.KCoarse,
		TopSections: cfg.Retrieval.TopSections,
		KPerSection: cfg.Retrieval.KPerSection,
	}, logger.Named("retriever"))

	reranker := rag.NewReranker(rerankProvider, cfg.Reranker.TopN, logger.Named("reranker"))

	tokenizer, err := rag.NewTiktokenTokenizer("cl100k_base", logger.Named("tokenizer"))
	var assembler *rag.ContextAssembler
	if err != nil {
		logger.Warn("tiktoken unavailable, using token estimator", zap.Error(err))
		assembler = rag.NewContextAssembler(cfg.Retrieval.TopSections, rag.EstimatorTokenizer{}, logger.Named("assembler"))
	} else {
		assembler = rag.NewContextAssembler(cfg.Retrieval.TopSections, tokenizer, logger.Named("assembler"))
	}

	collector := metrics.NewCollector("enerzal", prometheus.DefaultRegisterer, logger)
	p := pipeline.New(classifier, retriever, reranker, assembler, chatProvider, collector, logger.Named("pipeline"))

	// HTTP surface.
	manager := server.NewManager(server.NewMux(p, logger.Named("chat")), server.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)

	if err := manager.Start(); err != nil {
		return err
	}
	logger.Info("enerzal service started", zap.String("addr", manager.Addr()))

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-manager.Err():
		logger.Error("server error", zap.Error(err))
	}

	return manager.Shutdown(context.Background())
}
