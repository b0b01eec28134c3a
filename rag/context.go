package rag

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tech-enerzal/enerzal/types"
)

// contextPreamble frames the injected system turn for the generation model.
const contextPreamble = "Using the provided context from the database for Tech Enerzal to answer the user query."

// ContextBlock is the rendered retrieval context for one invocation. It is
// inlined into the conversation and then discarded.
type ContextBlock struct {
	// Rendered is the text spliced into the injected system turn.
	Rendered string

	// FAQText holds the re-ranked FAQ content. It is computed and carried for
	// observability but deliberately absent from Rendered, matching the
	// reference behavior.
	FAQText string

	// Tokens is the token count of Rendered.
	Tokens int
}

// ContextAssembler fuses retrieved sections into a context block and splices
// it into the conversation.
type ContextAssembler struct {
	topSections int
	tokenizer   Tokenizer
	logger      *zap.Logger
}

// NewContextAssembler creates an assembler that renders the top n coarse
// sections. tokenizer may be nil to skip token accounting.
func NewContextAssembler(topSections int, tokenizer Tokenizer, logger *zap.Logger) *ContextAssembler {
	return &ContextAssembler{
		topSections: topSections,
		tokenizer:   tokenizer,
		logger:      logger,
	}
}

// Assemble renders the top coarse sections' raw text, newline-joined under a
// "Sections:" heading, in their original rank order. The re-ranked FAQ text
// is carried on the block but not rendered.
func (a *ContextAssembler) Assemble(coarse []Document, rankedFAQs []RankedDocument) ContextBlock {
	top := a.topSections
	if top > len(coarse) {
		top = len(coarse)
	}

	sections := make([]string, 0, top)
	for _, doc := range coarse[:top] {
		sections = append(sections, doc.Content)
	}
	faqs := make([]string, 0, len(rankedFAQs))
	for _, faq := range rankedFAQs {
		faqs = append(faqs, faq.Document.Content)
	}

	block := ContextBlock{
		Rendered: fmt.Sprintf("Sections:\n%s\n", strings.Join(sections, "\n\n")),
		FAQText:  strings.Join(faqs, "\n\n"),
	}
	if a.tokenizer != nil {
		block.Tokens = a.tokenizer.CountTokens(block.Rendered)
	}

	a.logger.Debug("context assembled",
		zap.Int("sections", len(sections)),
		zap.Int("faqs_computed", len(faqs)),
		zap.Int("tokens", block.Tokens))
	return block
}

// Inject returns conversation with one system turn carrying the rendered
// block inserted immediately before the final turn. Turns before the
// insertion point and the final turn are unchanged.
func (a *ContextAssembler) Inject(conversation types.Conversation, block ContextBlock) types.Conversation {
	content := fmt.Sprintf("%s\nContext=\"%s\"", contextPreamble, block.Rendered)
	return conversation.InsertBeforeLast(types.NewSystemMessage(content))
}
