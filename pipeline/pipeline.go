// Package pipeline sequences the Enerzal RAG stages: routing classification,
// conditional two-stage retrieval, re-ranking, context injection, and
// streaming generation, converting any stage failure into a single terminal
// error chunk instead of crashing the stream.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tech-enerzal/enerzal/internal/metrics"
	"github.com/tech-enerzal/enerzal/providers"
	"github.com/tech-enerzal/enerzal/rag"
	"github.com/tech-enerzal/enerzal/types"
)

// Generation option defaults, matching the reference deployment.
const (
	DefaultTemperature   = 0.8
	DefaultNumPredict    = 4096
	DefaultNumCtx        = 8192
	DefaultGenerateModel = "default-model"
)

// Options carries the caller-tunable generation parameters. Fields are
// pointers so an explicitly supplied zero is distinguishable from an absent
// one: only absent fields take the defaults.
type Options struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
	NumCtx      *int     `json:"num_ctx,omitempty"`
}

// Request is the pipeline's public entry payload. A nil KeepAlive defers to
// the backend's configured default.
type Request struct {
	Model     string             `json:"model"`
	Messages  types.Conversation `json:"messages"`
	Options   *Options           `json:"options,omitempty"`
	Stream    *bool              `json:"stream,omitempty"`
	KeepAlive *int               `json:"keep_alive,omitempty"`
}

// StreamClient is the streaming slice of the chat backend consumed by the
// generation stage.
type StreamClient interface {
	Stream(ctx context.Context, req *providers.ChatRequest) (<-chan providers.StreamChunk, error)
}

// Pipeline orchestrates one RAG invocation end to end. It holds only
// read-only collaborators and is safe for concurrent invocations.
type Pipeline struct {
	classifier *rag.RoutingClassifier
	retriever  *rag.TwoStageRetriever
	reranker   *rag.Reranker
	assembler  *rag.ContextAssembler
	generator  StreamClient
	metrics    *metrics.Collector
	tracer     trace.Tracer
	logger     *zap.Logger
}

// New creates a pipeline. collector may be nil to disable metrics.
func New(
	classifier *rag.RoutingClassifier,
	retriever *rag.TwoStageRetriever,
	reranker *rag.Reranker,
	assembler *rag.ContextAssembler,
	generator StreamClient,
	collector *metrics.Collector,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		retriever:  retriever,
		reranker:   reranker,
		assembler:  assembler,
		generator:  generator,
		metrics:    collector,
		tracer:     otel.Tracer("enerzal/pipeline"),
		logger:     logger,
	}
}

// errorChunk is the single terminal error object emitted on any downstream
// failure.
type errorChunk struct {
	Error string `json:"error"`
}

func terminalErrorChunk(err error) string {
	data, _ := json.Marshal(errorChunk{
		Error: fmt.Sprintf("Error in generating response: %s", err.Error()),
	})
	return string(data)
}

// GenerateStream validates the request and starts one pipeline invocation.
//
// A missing or empty messages sequence fails synchronously with an
// INVALID_INPUT error before any chunk is produced; this is the only failure
// surfaced directly. Every later failure is reported as exactly one terminal
// JSON error chunk, after which the channel closes. The channel also closes
// when the generation stream ends normally or ctx is cancelled.
func (p *Pipeline) GenerateStream(ctx context.Context, req *Request) (<-chan string, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, types.NewError(types.ErrInvalidInput, "invalid messages format")
	}

	out := make(chan string)
	go p.run(ctx, req, out)
	return out, nil
}

func (p *Pipeline) run(ctx context.Context, req *Request, out chan<- string) {
	defer close(out)

	traceID := uuid.NewString()
	logger := p.logger.With(zap.String("trace_id", traceID))
	if p.metrics != nil {
		p.metrics.RecordInvocation()
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.generate",
		trace.WithAttributes(attribute.String("trace_id", traceID)))
	defer span.End()

	conversation, err := p.prepare(ctx, req, logger)
	if err != nil {
		logger.Error("pipeline stage failed", zap.Error(err))
		p.recordError(err)
		p.send(ctx, out, terminalErrorChunk(err))
		return
	}

	if err := p.generate(ctx, req, conversation, out, logger); err != nil {
		logger.Error("generation failed", zap.Error(err))
		p.recordError(err)
		p.send(ctx, out, terminalErrorChunk(err))
	}
}

// prepare runs classification and, when required, the retrieval chain, and
// returns the conversation to hand to generation. When routing decides
// retrieval is not required the input conversation is returned untouched.
func (p *Pipeline) prepare(ctx context.Context, req *Request, logger *zap.Logger) (types.Conversation, error) {
	userMessage := req.Messages[len(req.Messages)-1].Content

	decision, err := p.classify(ctx, userMessage)
	if err != nil {
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.RecordRoutingDecision(decision.Required)
	}
	if !decision.Required {
		logger.Info("database not required, proceeding without context")
		return req.Messages, nil
	}

	coarse, scoped, err := p.retrieve(ctx, userMessage)
	if err != nil {
		return nil, err
	}

	ranked, err := p.rerank(ctx, userMessage, scoped)
	if err != nil {
		return nil, err
	}

	block := p.assembler.Assemble(coarse, ranked)
	logger.Info("context prepared",
		zap.Int("coarse_results", len(coarse)),
		zap.Int("faq_candidates", len(scoped)),
		zap.Int("context_tokens", block.Tokens))
	return p.assembler.Inject(req.Messages, block), nil
}

func (p *Pipeline) classify(ctx context.Context, userMessage string) (rag.RoutingDecision, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.classify")
	defer span.End()
	start := time.Now()

	decision, err := p.classifier.Classify(ctx, userMessage)
	p.recordStage("classify", start)
	if err != nil {
		return rag.RoutingDecision{}, types.NewError(types.ErrUpstreamClassifier, err.Error()).WithCause(err)
	}
	span.SetAttributes(attribute.Bool("database_required", decision.Required))
	return decision, nil
}

func (p *Pipeline) retrieve(ctx context.Context, userMessage string) (coarse, scoped []rag.Document, err error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.retrieve")
	defer span.End()
	start := time.Now()
	defer p.recordStage("retrieve", start)

	coarse, err = p.retriever.Coarse(ctx, userMessage)
	if err != nil {
		return nil, nil, types.NewError(types.ErrRetrieval, err.Error()).WithCause(err)
	}

	sections := p.retriever.SectionNames(coarse)
	scoped, err = p.retriever.Scoped(ctx, userMessage, sections)
	if err != nil {
		return nil, nil, types.NewError(types.ErrRetrieval, err.Error()).WithCause(err)
	}
	span.SetAttributes(
		attribute.Int("coarse_results", len(coarse)),
		attribute.Int("scoped_results", len(scoped)),
	)
	return coarse, scoped, nil
}

func (p *Pipeline) rerank(ctx context.Context, userMessage string, scoped []rag.Document) ([]rag.RankedDocument, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.rerank")
	defer span.End()
	start := time.Now()
	defer p.recordStage("rerank", start)

	ranked, err := p.reranker.Rerank(ctx, userMessage, scoped)
	if err != nil {
		return nil, types.NewError(types.ErrRerank, err.Error()).WithCause(err)
	}
	return ranked, nil
}

func (p *Pipeline) recordStage(stage string, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordStageDuration(stage, time.Since(start))
	}
}

func (p *Pipeline) recordError(err error) {
	if p.metrics == nil {
		return
	}
	switch types.GetErrorCode(err) {
	case types.ErrUpstreamClassifier:
		p.metrics.RecordError("classify")
	case types.ErrRetrieval:
		p.metrics.RecordError("retrieve")
	case types.ErrRerank:
		p.metrics.RecordError("rerank")
	default:
		p.metrics.RecordError("generate")
	}
}

// send delivers one chunk unless the caller has gone away.
func (p *Pipeline) send(ctx context.Context, out chan<- string, chunk string) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
