// Package ollama implements the chat backend client for an Ollama-compatible
// API. The pipeline uses it twice per invocation: a short non-streaming
// completion for the routing self-query and a long-lived streaming call for
// the final generation.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tech-enerzal/enerzal/providers"
	"github.com/tech-enerzal/enerzal/types"
)

// Provider implements the Ollama chat API (/api/chat).
type Provider struct {
	cfg     providers.OllamaConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewProvider creates a new Ollama provider instance.
func NewProvider(cfg providers.OllamaConfig, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Provider{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		logger:  logger,
	}
}

func (p *Provider) Name() string { return "ollama" }

// HealthCheck probes the backend's model listing endpoint.
func (p *Provider) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/api/tags", strings.TrimRight(p.cfg.BaseURL, "/"))
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("ollama health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check failed: status=%d msg=%s", resp.StatusCode, readErrMsg(resp.Body))
	}
	return nil
}

// Wire types for the Ollama chat API.
type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
	NumCtx      int     `json:"num_ctx,omitempty"`
}

type ollamaRequest struct {
	Model     string          `json:"model"`
	Messages  []ollamaMessage `json:"messages"`
	Options   ollamaOptions   `json:"options"`
	Stream    bool            `json:"stream"`
	KeepAlive int             `json:"keep_alive"`
}

// ollamaEnvelope is the response envelope. Some backend builds reply with a
// single message object, others with a messages list; the variation is
// resolved here, once, and never re-sniffed downstream.
type ollamaEnvelope struct {
	Model    string          `json:"model"`
	Message  *ollamaMessage  `json:"message,omitempty"`
	Messages []ollamaMessage `json:"messages,omitempty"`
	Done     bool            `json:"done,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// reply extracts the assistant message from either envelope variant.
func (e *ollamaEnvelope) reply() (types.Message, error) {
	switch {
	case e.Message != nil:
		return types.Message{Role: types.Role(e.Message.Role), Content: e.Message.Content}, nil
	case len(e.Messages) > 0:
		last := e.Messages[len(e.Messages)-1]
		return types.Message{Role: types.Role(last.Role), Content: last.Content}, nil
	default:
		return types.Message{}, types.NewError(types.ErrInvalidResponse,
			"no message or messages key found in response").WithProvider("ollama")
	}
}

func convertMessages(msgs types.Conversation) []ollamaMessage {
	out := make([]ollamaMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ollamaMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func mapError(status int, msg string) *types.Error {
	switch status {
	case http.StatusNotFound:
		return types.NewError(types.ErrUpstreamError, msg).WithHTTPStatus(status).WithProvider("ollama")
	case http.StatusBadRequest:
		return types.NewError(types.ErrInvalidResponse, msg).WithHTTPStatus(status).WithProvider("ollama")
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return types.NewError(types.ErrUpstreamError, msg).WithHTTPStatus(status).WithRetryable(true).WithProvider("ollama")
	default:
		return types.NewError(types.ErrUpstreamError, msg).WithHTTPStatus(status).WithRetryable(status >= 500).WithProvider("ollama")
	}
}

func readErrMsg(body io.Reader) string {
	data, _ := io.ReadAll(body)
	var envelope ollamaEnvelope
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error != "" {
		return envelope.Error
	}
	return string(data)
}

// keepAlive resolves the request's keep_alive, falling back to the configured
// value when the request carries none.
func (p *Provider) keepAlive(req *providers.ChatRequest) int {
	if req.KeepAlive != nil {
		return *req.KeepAlive
	}
	return p.cfg.KeepAlive
}

func (p *Provider) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

func (p *Provider) post(ctx context.Context, body ollamaRequest) (*http.Response, error) {
	payload, _ := json.Marshal(body)
	endpoint := fmt.Sprintf("%s/api/chat", strings.TrimRight(p.cfg.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrGenerationTransport, err.Error()).WithProvider(p.Name())
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrGenerationTransport, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(p.Name())
	}
	return resp, nil
}

// Completion issues a non-streaming chat call and returns the full reply.
func (p *Provider) Completion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	if err := p.wait(ctx); err != nil {
		return nil, types.NewError(types.ErrGenerationTransport, err.Error()).WithProvider(p.Name())
	}

	body := ollamaRequest{
		Model:    providers.ChooseModel(req, p.cfg.Model, "gemma2:2b"),
		Messages: convertMessages(req.Messages),
		Options: ollamaOptions{
			Temperature: req.Options.Temperature,
			NumPredict:  req.Options.NumPredict,
			NumCtx:      req.Options.NumCtx,
		},
		Stream:    false,
		KeepAlive: p.keepAlive(req),
	}

	resp, err := p.post(ctx, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, mapError(resp.StatusCode, readErrMsg(resp.Body))
	}

	var envelope ollamaEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, types.NewError(types.ErrInvalidResponse, err.Error()).WithProvider(p.Name())
	}

	msg, err := envelope.reply()
	if err != nil {
		return nil, err
	}
	return &providers.ChatResponse{Model: envelope.Model, Message: msg}, nil
}

// Stream issues a streaming chat call and relays the newline-delimited JSON
// reply as a channel of chunks. Lines that fail to parse as JSON are emitted
// verbatim as raw chunks rather than discarded. The channel closes when the
// transport closes; cancelling ctx closes the underlying connection.
func (p *Provider) Stream(ctx context.Context, req *providers.ChatRequest) (<-chan providers.StreamChunk, error) {
	if err := p.wait(ctx); err != nil {
		return nil, types.NewError(types.ErrGenerationTransport, err.Error()).WithProvider(p.Name())
	}

	body := ollamaRequest{
		Model:    providers.ChooseModel(req, p.cfg.Model, "default-model"),
		Messages: convertMessages(req.Messages),
		Options: ollamaOptions{
			Temperature: req.Options.Temperature,
			NumPredict:  req.Options.NumPredict,
			NumCtx:      req.Options.NumCtx,
		},
		Stream:    true,
		KeepAlive: p.keepAlive(req),
	}

	resp, err := p.post(ctx, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, mapError(resp.StatusCode, readErrMsg(resp.Body))
	}

	ch := make(chan providers.StreamChunk)
	go func() {
		defer resp.Body.Close()
		defer close(ch)

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			var envelope ollamaEnvelope
			if err := json.Unmarshal([]byte(line), &envelope); err != nil {
				// Forward progress beats strict protocol conformance:
				// relay the line untouched.
				p.logger.Warn("received non-JSON line from chat stream", zap.String("line", line))
				select {
				case ch <- providers.StreamChunk{Raw: line}:
				case <-ctx.Done():
					return
				}
				continue
			}

			if envelope.Message == nil {
				continue
			}
			chunk := providers.StreamChunk{
				Message: types.Message{
					Role:    types.Role(envelope.Message.Role),
					Content: envelope.Message.Content,
				},
			}
			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			ch <- providers.StreamChunk{Err: types.NewError(types.ErrGenerationTransport, err.Error()).
				WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(p.Name())}
		}
	}()
	return ch, nil
}
