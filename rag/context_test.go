package rag

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/tech-enerzal/enerzal/types"
)

func TestContextAssembler_Assemble(t *testing.T) {
	a := NewContextAssembler(2, EstimatorTokenizer{}, zap.NewNop())

	coarse := []Document{
		{ID: "s1", Content: "Leave policy details."},
		{ID: "s2", Content: "IT asset rules."},
		{ID: "s3", Content: "Never rendered."},
	}
	faqs := []RankedDocument{
		{Document: Document{Content: "Q: How many leaves?\nA: 24."}, Score: 0.9},
		{Document: Document{Content: "Q: Carry forward?\nA: Yes."}, Score: 0.4},
	}

	block := a.Assemble(coarse, faqs)

	assert.Equal(t, "Sections:\nLeave policy details.\n\nIT asset rules.\n", block.Rendered)
	assert.NotContains(t, block.Rendered, "Never rendered.", "only the top sections render")
	assert.NotContains(t, block.Rendered, "Q:", "FAQ text is carried but not rendered")
	assert.Equal(t, "Q: How many leaves?\nA: 24.\n\nQ: Carry forward?\nA: Yes.", block.FAQText)
	assert.Equal(t, len(block.Rendered)/4, block.Tokens)
}

func TestContextAssembler_Assemble_FewerSectionsThanTop(t *testing.T) {
	a := NewContextAssembler(2, nil, zap.NewNop())

	block := a.Assemble([]Document{{ID: "s1", Content: "Only one."}}, nil)
	assert.Equal(t, "Sections:\nOnly one.\n", block.Rendered)
	assert.Empty(t, block.FAQText)
	assert.Zero(t, block.Tokens, "nil tokenizer skips accounting")
}

func TestContextAssembler_Inject(t *testing.T) {
	a := NewContextAssembler(2, nil, zap.NewNop())
	conv := types.Conversation{
		types.NewSystemMessage("persona"),
		types.NewUserMessage("earlier"),
		types.NewAssistantMessage("earlier reply"),
		types.NewUserMessage("current question"),
	}
	block := ContextBlock{Rendered: "Sections:\nLeave policy.\n"}

	out := a.Inject(conv, block)

	require.Len(t, out, 5)
	assert.Equal(t, conv[:3], out[:3])
	assert.Equal(t, types.NewUserMessage("current question"), out[4])

	injected := out[3]
	assert.Equal(t, types.RoleSystem, injected.Role)
	assert.Equal(t,
		contextPreamble+"\nContext=\"Sections:\nLeave policy.\n\"",
		injected.Content)
}

func TestContextAssembler_Inject_PreservesSurroundingTurns(t *testing.T) {
	a := NewContextAssembler(2, nil, zap.NewNop())

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "turns")
		conv := make(types.Conversation, 0, n)
		for i := 0; i < n; i++ {
			conv = append(conv, types.NewUserMessage(fmt.Sprintf("turn %d: %s", i, rapid.String().Draw(t, "content"))))
		}
		rendered := rapid.String().Draw(t, "rendered")

		out := a.Inject(conv, ContextBlock{Rendered: rendered})

		assert.Len(t, out, n+1)
		assert.Equal(t, conv[:n-1], types.Conversation(out[:n-1]))
		assert.Equal(t, conv[n-1], out[n], "the final turn stays last")
		assert.Equal(t, types.RoleSystem, out[n-1].Role)
		assert.True(t, strings.Contains(out[n-1].Content, rendered))
	})
}
