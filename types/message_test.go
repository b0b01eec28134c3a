package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversation_LastUserContent(t *testing.T) {
	tests := []struct {
		name   string
		conv   Conversation
		want   string
		wantOK bool
	}{
		{
			name:   "ends with user turn",
			conv:   Conversation{NewSystemMessage("sys"), NewUserMessage("hello")},
			want:   "hello",
			wantOK: true,
		},
		{
			name:   "ends with assistant turn",
			conv:   Conversation{NewUserMessage("hi"), NewAssistantMessage("hello")},
			wantOK: false,
		},
		{
			name:   "empty conversation",
			conv:   Conversation{},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.conv.LastUserContent()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConversation_InsertBeforeLast(t *testing.T) {
	conv := Conversation{
		NewSystemMessage("persona"),
		NewUserMessage("first"),
		NewAssistantMessage("reply"),
		NewUserMessage("last"),
	}

	out := conv.InsertBeforeLast(NewSystemMessage("context"))

	assert.Len(t, out, 5)
	assert.Equal(t, conv[:3], out[:3], "turns before the insertion point are unchanged")
	assert.Equal(t, NewSystemMessage("context"), out[3])
	assert.Equal(t, NewUserMessage("last"), out[4], "final turn stays last")

	// The input conversation is not mutated.
	assert.Len(t, conv, 4)
}

func TestConversation_InsertBeforeLast_Empty(t *testing.T) {
	var conv Conversation
	out := conv.InsertBeforeLast(NewSystemMessage("context"))
	assert.Empty(t, out)
}
