package nodes

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/model"
	logx "github.com/Chative-core-poc-v1/orchestrator/pkg/logger"
)

// TrimHistory empties the working set once the latest AI message reports
// token usage at or above the ceiling. It never trims partially.
func (n *Nodes) TrimHistory(_ context.Context, state *model.ConversationState) {
	if n.cfg.TokenCeiling <= 0 {
		return
	}
	usage := model.TokenUsage(model.LastAIMessage(state.Working))
	if usage == nil || usage.TotalTokens < n.cfg.TokenCeiling {
		return
	}

	logx.Info().
		Str("conversation_id", state.ConversationID).
		Int("total_tokens", usage.TotalTokens).
		Int("token_ceiling", n.cfg.TokenCeiling).
		Int("dropped_messages", len(state.Working)).
		Msg("Token ceiling reached; resetting working messages")

	state.Working = nil
	state.Rewrite = true
}

// PrependSystemPrompt makes sure the working set starts with the system
// prompt and ends with the pending message. An existing system prompt keeps
// the current order.
func (n *Nodes) PrependSystemPrompt(_ context.Context, state *model.ConversationState) {
	for _, m := range state.Working {
		if model.IsSystemPrompt(m) {
			state.Append(state.Pending)
			return
		}
	}

	working := make([]*schema.Message, 0, len(state.Working)+2)
	working = append(working, model.NewSystemPrompt(n.cfg.SystemPrompt))
	working = append(working, state.Working...)
	working = append(working, state.Pending)
	state.Working = working

	// The stored history no longer is a prefix of the working set.
	if len(state.History) > 0 {
		state.Rewrite = true
	}
}
