package server

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tech-enerzal/enerzal/pipeline"
	"github.com/tech-enerzal/enerzal/types"
)

// ChatHandler streams pipeline output over HTTP.
type ChatHandler struct {
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
}

// NewChatHandler creates the chat endpoint handler.
func NewChatHandler(p *pipeline.Pipeline, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{pipeline: p, logger: logger}
}

// NewMux builds the service routing table: the chat endpoint, health, and
// Prometheus metrics.
func NewMux(p *pipeline.Pipeline, logger *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("POST /api/chat", NewChatHandler(p, logger))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// ServeHTTP decodes the chat payload, runs the pipeline, and relays its
// chunks, flushing after each one. Invalid input is the only request that
// fails with an HTTP error status; every later failure arrives in-stream as
// the pipeline's terminal error chunk.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stream, err := h.pipeline.GenerateStream(r.Context(), &req)
	if err != nil {
		status := http.StatusInternalServerError
		if types.GetErrorCode(err) == types.ErrInvalidInput {
			status = http.StatusBadRequest
		}
		h.writeError(w, status, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	for chunk := range stream {
		if _, err := w.Write([]byte(chunk)); err != nil {
			h.logger.Debug("client disconnected mid-stream", zap.Error(err))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (h *ChatHandler) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
