package providers

import "github.com/tech-enerzal/enerzal/types"

// ChatOptions carries the sampling options forwarded to the chat backend.
type ChatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
	NumCtx      int     `json:"num_ctx,omitempty"`
}

// ChatRequest represents a single chat call against a backend. A nil
// KeepAlive lets the provider apply its configured default.
type ChatRequest struct {
	Model     string             `json:"model"`
	Messages  types.Conversation `json:"messages"`
	Options   ChatOptions        `json:"options"`
	KeepAlive *int               `json:"keep_alive,omitempty"`
}

// ChatResponse represents a complete (non-streaming) chat reply.
type ChatResponse struct {
	Model   string        `json:"model"`
	Message types.Message `json:"message"`
}

// StreamChunk is one unit of a streaming chat reply.
//
// Exactly one of Message, Raw, or Err is meaningful per chunk: a decoded
// message envelope, the verbatim text of a line that did not parse as JSON,
// or a transport error that terminates the stream.
type StreamChunk struct {
	Message types.Message `json:"message,omitempty"`
	Raw     string        `json:"raw,omitempty"`
	Err     *types.Error  `json:"error,omitempty"`
}

// IsRaw reports whether the chunk carries a raw fallback line.
func (c StreamChunk) IsRaw() bool { return c.Raw != "" }

// ChooseModel selects the model to use based on priority:
// request model, then config model, then the provider default.
func ChooseModel(req *ChatRequest, configModel string, defaultModel string) string {
	if req != nil && req.Model != "" {
		return req.Model
	}
	if configModel != "" {
		return configModel
	}
	return defaultModel
}
