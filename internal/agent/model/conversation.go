package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// ConversationStore persists conversation history between turns.
type ConversationStore interface {
	// GetHistory returns the stored messages in chronological order.
	GetHistory(ctx context.Context, conversationID string) ([]*schema.Message, error)

	// AppendTurn commits the outcome of one turn.
	AppendTurn(ctx context.Context, conversationID string, turn TurnRecord) error
}

// TurnRecord is what a finished turn hands to the store. When Rewrite is set
// the stored history is replaced by Messages; otherwise Appended is added to
// the end of it.
type TurnRecord struct {
	Messages []*schema.Message
	Appended []*schema.Message
	Rewrite  bool
}

// NewMessages returns the messages the store has to write for this record.
func (r TurnRecord) NewMessages() []*schema.Message {
	if r.Rewrite {
		return r.Messages
	}
	return r.Appended
}
