package repo

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/model"
)

// MemoryConversationStore keeps conversations in process memory. It is meant
// for local runs and tests; nothing survives a restart.
type MemoryConversationStore struct {
	mu            sync.RWMutex
	conversations map[string][]*schema.Message
}

func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{conversations: map[string][]*schema.Message{}}
}

func (s *MemoryConversationStore) GetHistory(_ context.Context, conversationID string) ([]*schema.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.conversations[conversationID]
	out := make([]*schema.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryConversationStore) AppendTurn(_ context.Context, conversationID string, turn model.TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if turn.Rewrite {
		s.conversations[conversationID] = append([]*schema.Message(nil), turn.Messages...)
		return nil
	}
	s.conversations[conversationID] = append(s.conversations[conversationID], turn.Appended...)
	return nil
}

func (s *MemoryConversationStore) ClearHistory(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, conversationID)
	return nil
}

var _ model.ConversationStore = (*MemoryConversationStore)(nil)
