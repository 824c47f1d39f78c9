package nodes

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/model"
)

const DefaultMaxToolRoundTrips = 10

// normalizeMaxToolRoundTrips returns a sane default when the provided value is invalid.
func normalizeMaxToolRoundTrips(n int) int {
	if n <= 0 {
		return DefaultMaxToolRoundTrips
	}
	return n
}

// toolLimitReached reports whether another tool round would exceed max.
func toolLimitReached(state *model.ConversationState, max int) bool {
	return state.ToolRoundTrips >= normalizeMaxToolRoundTrips(max)
}

// normalizeToolCallIDs fills ids some providers omit so tool results can be
// matched to their calls.
func normalizeToolCallIDs(msg *schema.Message, round int) {
	for i := range msg.ToolCalls {
		if strings.TrimSpace(msg.ToolCalls[i].ID) == "" {
			msg.ToolCalls[i].ID = fmt.Sprintf("call_%d_%d", round, i+1)
		}
	}
}

func cloneMessages(msgs []*schema.Message, extra ...*schema.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs)+len(extra))
	out = append(out, msgs...)
	return append(out, extra...)
}
