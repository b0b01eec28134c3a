package rag

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/tech-enerzal/enerzal/providers"
	"github.com/tech-enerzal/enerzal/types"
)

// DefaultRouteOnAmbiguousVerdict is the routing result applied when the
// classifier reply carries no parseable verdict. The pipeline fails open
// toward a context-free answer: on ambiguity it degrades to answering without
// retrieval rather than blocking or guessing.
const DefaultRouteOnAmbiguousVerdict = false

// RoutingDecision records whether knowledge-base retrieval is required for
// the current invocation. It is derived once from the latest user turn and
// never revised mid-pipeline.
type RoutingDecision struct {
	Required bool   `json:"required"`
	Verdict  string `json:"verdict,omitempty"`
}

// CompletionClient is the non-streaming slice of the chat backend consumed by
// the classifier.
type CompletionClient interface {
	Completion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error)
}

// ClassifierConfig configures the routing self-query call.
type ClassifierConfig struct {
	// Model is the small verdict model, distinct from the generation model.
	Model string `json:"model" yaml:"model"`

	// NumPredict caps the verdict reply length.
	NumPredict int `json:"num_predict" yaml:"num_predict"`
}

// DefaultClassifierConfig returns the reference classifier settings.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		Model:      "gemma2:2b",
		NumPredict: 15,
	}
}

var verdictPattern = regexp.MustCompile(`(?i)Database required:\s*(Yes|No)`)

// selfQuerySystemPrompt frames the verdict call.
const selfQuerySystemPrompt = "You are an assistant that determines whether a database is required to answer a question."

// selfQueryPromptTemplate embeds the latest user message together with the
// assistant persona and in-scope topics, and demands a literal yes/no verdict.
const selfQueryPromptTemplate = `
Given the following question:

"%s"

Context:
 You are Enerzal, a friendly and intelligent chatbot developed by Tech Enerzal. Your primary role is to assist employees of Tech Enerzal by providing helpful, polite, and accurate information. You should always maintain a friendly and approachable tone while ensuring your responses are clear and informative. Your purpose is to assist with the following:

1. **HR-Related Queries:** Help employees with questions regarding company policies, leave management, employee benefits, payroll, and other HR-related topics. Be empathetic and supportive, especially for sensitive topics like leave or benefits.

2. **IT Support:** Provide guidance on common IT issues employees may encounter, such as troubleshooting technical problems, resetting passwords, or navigating company software. Be patient and provide step-by-step instructions for resolving technical issues.

3. **Company Events & Updates:** Keep employees informed about upcoming company events, milestones, and internal updates. Share details about events in a friendly, enthusiastic tone to keep the company culture vibrant and engaging.

4. **Uploaded Document Summarization and Querying:** Enerzal also helps employees by summarizing documents (PDF, DOCX, TXT) and answering queries based on the content of uploaded documents. For document summaries, be concise and informative, extracting the key points while maintaining clarity. When answering queries, provide clear and accurate answers based on the document content, making sure to offer further assistance if needed.

Determine whether the assistant needs to access an external database for only  HR , IT , Company events to provide an accurate answer. For Uploaded Document's and casual talks Default to NO

Answer with 'Yes' if the database is required, or 'No' if the database is not required.

Answer in the following format:

"Database required: Yes" or "Database required: No"
`

// RoutingClassifier decides, from the latest user turn, whether knowledge-base
// retrieval is required before generating an answer.
type RoutingClassifier struct {
	client CompletionClient
	cache  VerdictCache
	config ClassifierConfig
	logger *zap.Logger
}

// NewRoutingClassifier creates a classifier over the given completion client.
// cache may be nil to disable verdict caching.
func NewRoutingClassifier(client CompletionClient, cache VerdictCache, config ClassifierConfig, logger *zap.Logger) *RoutingClassifier {
	return &RoutingClassifier{
		client: client,
		cache:  cache,
		config: config,
		logger: logger,
	}
}

// Classify runs the routing self-query for the latest user message.
//
// A transport or protocol failure talking to the backend propagates to the
// caller and aborts the pipeline. Only a reply that arrives intact but lacks
// the literal verdict pattern resolves to DefaultRouteOnAmbiguousVerdict.
func (c *RoutingClassifier) Classify(ctx context.Context, userMessage string) (RoutingDecision, error) {
	if c.cache != nil {
		if decision, ok := c.cache.Get(ctx, userMessage); ok {
			c.logger.Debug("routing verdict served from cache",
				zap.Bool("required", decision.Required))
			return decision, nil
		}
	}

	// The verdict model is unloaded after each call regardless of the
	// backend's configured keep_alive.
	unload := 0
	chatReq := &providers.ChatRequest{
		Model: c.config.Model,
		Messages: types.Conversation{
			types.NewSystemMessage(selfQuerySystemPrompt),
			types.NewUserMessage(fmt.Sprintf(selfQueryPromptTemplate, userMessage)),
		},
		Options: providers.ChatOptions{
			Temperature: 0.0,
			NumPredict:  c.config.NumPredict,
		},
		KeepAlive: &unload,
	}

	resp, err := c.client.Completion(ctx, chatReq)
	if err != nil {
		return RoutingDecision{}, fmt.Errorf("routing self-query: %w", err)
	}

	reply := strings.TrimSpace(resp.Message.Content)
	decision := ParseVerdict(reply)
	if decision.Verdict == "" {
		c.logger.Warn("could not parse database requirement from classifier reply",
			zap.String("reply", reply))
	} else {
		c.logger.Info("routing decision",
			zap.Bool("required", decision.Required))
	}

	if c.cache != nil {
		c.cache.Set(ctx, userMessage, decision)
	}
	return decision, nil
}

// ParseVerdict extracts the routing verdict from a classifier reply. The
// literal pattern "Database required: Yes|No" is matched case-insensitively
// anywhere in the reply; a reply without it resolves to
// DefaultRouteOnAmbiguousVerdict.
func ParseVerdict(reply string) RoutingDecision {
	match := verdictPattern.FindStringSubmatch(reply)
	if match == nil {
		return RoutingDecision{Required: DefaultRouteOnAmbiguousVerdict}
	}
	verdict := strings.ToLower(strings.TrimSpace(match[1]))
	return RoutingDecision{
		Required: verdict == "yes",
		Verdict:  verdict,
	}
}
