package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/graph/prompts"
	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/graph/tools"
	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/orchestrator/internal/core/error"
	logx "github.com/Chative-core-poc-v1/orchestrator/pkg/logger"
)

// DefaultResponse runs the agent model over the working set, executing tool
// calls between invocations until the model answers without tools. Past the
// round-trip limit the unanswered tool request is dropped and the tool-free
// model writes the final answer.
func (n *Nodes) DefaultResponse(ctx context.Context, state *model.ConversationState) (model.TurnOutcome, error) {
	var out *schema.Message
	for {
		var err error
		out, err = n.generate(ctx, state, NodeDefaultResponse, KeyAgent, n.cfg.ResponseModelName, n.cfg.Agent, state.Working)
		if err != nil {
			return nil, err
		}
		normalizeToolCallIDs(out, state.ToolRoundTrips+1)
		state.Append(out)

		if len(out.ToolCalls) == 0 {
			logx.Debug().Str("conversation_id", state.ConversationID).Msg("AI response ready")
			break
		}

		if toolLimitReached(state, n.cfg.MaxToolRoundTrips) {
			out, err = n.wrapUp(ctx, state)
			if err != nil {
				return nil, err
			}
			break
		}

		logx.Debug().Int("tool_count", len(out.ToolCalls)).Msg("Calling tools")
		if err := n.ExecuteTools(ctx, state); err != nil {
			return nil, err
		}
	}

	if strings.TrimSpace(out.Content) == "" {
		return nil, fmt.Errorf("%s: %w", NodeDefaultResponse, errx.ErrNoResponse)
	}
	return model.DefaultOutcome{Content: out.Content, Images: state.Images}, nil
}

// wrapUp replaces the last, unanswered tool request with a final answer.
func (n *Nodes) wrapUp(ctx context.Context, state *model.ConversationState) (*schema.Message, error) {
	logx.Warn().
		Str("conversation_id", state.ConversationID).
		Int("tool_round_trips", state.ToolRoundTrips).
		Int("max_tool_round_trips", n.cfg.MaxToolRoundTrips).
		Msg("Tool round-trip limit reached; asking for a final answer")

	state.Working = state.Working[:len(state.Working)-1]

	notice, err := prompts.RenderToolLimitNotice(ctx, n.cfg.MaxToolRoundTrips)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", NodeDefaultResponse, err)
	}
	out, err := n.generate(ctx, state, NodeDefaultResponse, KeyChat, n.cfg.ResponseModelName, n.cfg.Response,
		cloneMessages(state.Working, schema.SystemMessage(notice)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errx.ErrToolLoopExceeded, err)
	}
	out.ToolCalls = nil
	state.Append(out)
	return out, nil
}

// ExecuteTools answers every tool call on the latest AI message, in order,
// and appends the Tool results to the working set.
func (n *Nodes) ExecuteTools(ctx context.Context, state *model.ConversationState) error {
	ai := model.LastAIMessage(state.Working)
	if ai == nil || len(ai.ToolCalls) == 0 {
		return nil
	}
	state.ToolRoundTrips++

	logx.Debug().
		Int("tool_round_trip", state.ToolRoundTrips).
		Str("conversation_id", state.ConversationID).
		Msg("Tool execution attempt")

	sink := &tools.ImageSink{}
	tctx := tools.WithImageSink(ctx, sink)
	for _, call := range ai.ToolCalls {
		if n.cfg.Tools == nil {
			state.Append(schema.ToolMessage(
				fmt.Sprintf("{\"error\":\"tools_unavailable\",\"name\":%q}", call.Function.Name),
				call.ID, schema.WithToolName(call.Function.Name)))
			continue
		}
		msg, err := n.cfg.Tools.Execute(tctx, call)
		if err != nil {
			return fmt.Errorf("%s: %w", NodeToolExecution, err)
		}
		state.Append(msg)
	}

	parent := model.MessageID(ai)
	for _, img := range sink.Images() {
		img.ParentMessageID = parent
		state.AddImages(img)
	}
	return nil
}
