package nodes

import (
	"context"
	"fmt"

	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/graph/parsers"
	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/graph/prompts"
	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/model"
	logx "github.com/Chative-core-poc-v1/orchestrator/pkg/logger"
)

// ClassifyIntent asks the intent model how the pending message should be
// handled and records the answer on the state. An answer outside the known
// response types fails the turn.
func (n *Nodes) ClassifyIntent(ctx context.Context, state *model.ConversationState) error {
	sys, err := prompts.RenderIntentSystem(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", NodeClassifyIntent, err)
	}

	out, err := n.generate(ctx, state, NodeClassifyIntent, KeyIntent, n.cfg.IntentModelName, n.cfg.Intent, userTurn(state, sys))
	if err != nil {
		return err
	}

	rt, err := parsers.ParseResponseType(out.Content)
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", state.ConversationID).Msg("Error parsing intent response")
		return err
	}

	logx.Debug().Str("conversation_id", state.ConversationID).Str("response_type", string(rt)).Msg("Intent classified")
	return state.SetResponseType(rt)
}

// MediaContextActive reports whether the author is in the middle of a media
// exchange, in which case classification is skipped. Lookup failures are
// logged and treated as inactive.
func (n *Nodes) MediaContextActive(ctx context.Context, state *model.ConversationState) bool {
	if n.cfg.Media == nil {
		return false
	}
	active, err := n.cfg.Media.HasActiveMediaContext(ctx, state.Author, state.Pending)
	if err != nil {
		logx.Warn().Err(err).Str("conversation_id", state.ConversationID).Msg("media context lookup failed; classifying normally")
		return false
	}
	return active
}
