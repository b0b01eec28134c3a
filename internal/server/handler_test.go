package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tech-enerzal/enerzal/pipeline"
	"github.com/tech-enerzal/enerzal/providers"
	"github.com/tech-enerzal/enerzal/rag"
	"github.com/tech-enerzal/enerzal/testutil/mocks"
	"github.com/tech-enerzal/enerzal/types"
)

func newTestServer(t *testing.T, generator *mocks.ChatBackend) *httptest.Server {
	t.Helper()
	logger := zap.NewNop()

	classifier := rag.NewRoutingClassifier(
		&mocks.ChatBackend{Reply: "Database required: No"}, nil, rag.DefaultClassifierConfig(), logger)
	retriever := rag.NewTwoStageRetriever(&mocks.VectorStore{}, &mocks.VectorStore{}, rag.DefaultRetrievalConfig(), logger)
	reranker := rag.NewReranker(&mocks.RerankBackend{}, 3, logger)
	assembler := rag.NewContextAssembler(2, rag.EstimatorTokenizer{}, logger)

	p := pipeline.New(classifier, retriever, reranker, assembler, generator, nil, logger)
	srv := httptest.NewServer(NewMux(p, logger))
	t.Cleanup(srv.Close)
	return srv
}

func TestChatHandler_StreamsChunks(t *testing.T) {
	generator := &mocks.ChatBackend{Chunks: []providers.StreamChunk{
		{Message: types.NewAssistantMessage("Hello")},
		{Message: types.NewAssistantMessage(" world")},
	}}
	srv := newTestServer(t, generator)

	resp, err := http.Post(srv.URL+"/api/chat", "application/json",
		strings.NewReader(`{"model":"m","messages":[{"role":"user","content":"hi"}]}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Hello\n world\n", string(body))
}

func TestChatHandler_InvalidBody(t *testing.T) {
	srv := newTestServer(t, &mocks.ChatBackend{})

	resp, err := http.Post(srv.URL+"/api/chat", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatHandler_EmptyMessages(t *testing.T) {
	srv := newTestServer(t, &mocks.ChatBackend{})

	resp, err := http.Post(srv.URL+"/api/chat", "application/json",
		strings.NewReader(`{"model":"m","messages":[]}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "invalid messages format")
}

func TestChatHandler_DownstreamFailureStreamsErrorChunk(t *testing.T) {
	generator := &mocks.ChatBackend{StreamErr: assert.AnError}
	srv := newTestServer(t, generator)

	resp, err := http.Post(srv.URL+"/api/chat", "application/json",
		strings.NewReader(`{"model":"m","messages":[{"role":"user","content":"hi"}]}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	// Downstream failures keep the 200 stream and arrive as the terminal
	// error chunk.
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"error":"Error in generating response: `)
}

func TestMux_Health(t *testing.T) {
	srv := newTestServer(t, &mocks.ChatBackend{})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMux_Metrics(t *testing.T) {
	srv := newTestServer(t, &mocks.ChatBackend{})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMux_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &mocks.ChatBackend{})

	resp, err := http.Get(srv.URL + "/api/chat")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
