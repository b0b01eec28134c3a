// Package types provides core types used across the enerzal pipeline.
// This package has ZERO dependencies on other enerzal packages to avoid circular imports.
// All other packages should import types from here.
package types

// Role represents the role of a conversation participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewMessage creates a new message with the given role and content.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// Conversation is an ordered sequence of messages. The pipeline requires the
// final message to carry RoleUser before any retrieval or generation runs.
type Conversation []Message

// LastUserContent returns the content of the final message if it is a user
// turn, and reports whether the conversation ends with one.
func (c Conversation) LastUserContent() (string, bool) {
	if len(c) == 0 {
		return "", false
	}
	last := c[len(c)-1]
	if last.Role != RoleUser {
		return "", false
	}
	return last.Content, true
}

// InsertBeforeLast returns a copy of the conversation with msg inserted
// immediately before the final turn. Turns before the insertion point and the
// final turn itself are unchanged. A conversation shorter than one message is
// returned as-is.
func (c Conversation) InsertBeforeLast(msg Message) Conversation {
	if len(c) == 0 {
		return c
	}
	out := make(Conversation, 0, len(c)+1)
	out = append(out, c[:len(c)-1]...)
	out = append(out, msg)
	out = append(out, c[len(c)-1])
	return out
}
