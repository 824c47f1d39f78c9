package model

import (
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

const (
	// MessageIDKey is the Extra key holding a message's stable id.
	MessageIDKey = "message_id"
	// SystemPromptID identifies the one system prompt kept at the head of the working set.
	SystemPromptID = "system-prompt"
)

// Stamp assigns a fresh id to a message that has none. It is applied once,
// when a message enters the conversation; messages are not edited afterwards.
func Stamp(msg *schema.Message) *schema.Message {
	if msg == nil {
		return nil
	}
	if MessageID(msg) != "" {
		return msg
	}
	if msg.Extra == nil {
		msg.Extra = map[string]any{}
	}
	msg.Extra[MessageIDKey] = uuid.NewString()
	return msg
}

// MessageID returns the id stored on msg, or "".
func MessageID(msg *schema.Message) string {
	if msg == nil || msg.Extra == nil {
		return ""
	}
	id, _ := msg.Extra[MessageIDKey].(string)
	return id
}

// NewUserMessage creates the pending human message of a turn.
func NewUserMessage(author, text string) *schema.Message {
	msg := schema.UserMessage(text)
	msg.Name = strings.TrimSpace(author)
	return Stamp(msg)
}

// NewSystemPrompt creates the well-known system prompt message.
func NewSystemPrompt(content string) *schema.Message {
	msg := schema.SystemMessage(content)
	msg.Extra = map[string]any{MessageIDKey: SystemPromptID}
	return msg
}

// IsSystemPrompt reports whether msg is the well-known system prompt.
func IsSystemPrompt(msg *schema.Message) bool {
	return msg != nil && msg.Role == schema.System && MessageID(msg) == SystemPromptID
}

// TokenUsage returns the usage reported for an AI message, if any.
func TokenUsage(msg *schema.Message) *schema.TokenUsage {
	if msg == nil || msg.Role != schema.Assistant || msg.ResponseMeta == nil {
		return nil
	}
	return msg.ResponseMeta.Usage
}

// LastAIMessage returns the most recent assistant message in msgs.
func LastAIMessage(msgs []*schema.Message) *schema.Message {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i] != nil && msgs[i].Role == schema.Assistant {
			return msgs[i]
		}
	}
	return nil
}
