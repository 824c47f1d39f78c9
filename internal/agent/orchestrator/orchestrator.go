package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/graph"
	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/orchestrator/internal/core/error"
	"github.com/Chative-core-poc-v1/orchestrator/internal/metrics"
	logx "github.com/Chative-core-poc-v1/orchestrator/pkg/logger"
)

const fallbackPrefix = "An error happened while processing your message: "

// Orchestrator is the entry point for a conversation turn. It loads history,
// runs the graph, persists the result and turns every failure into a reply.
type Orchestrator struct {
	store  model.ConversationStore
	runner graph.Runner
	locks  *keyedLock
}

func New(store model.ConversationStore, runner graph.Runner) *Orchestrator {
	return &Orchestrator{store: store, runner: runner, locks: newKeyedLock()}
}

// HandleTurn answers one user message. It never returns an error: failures
// come back as a reply describing the error, with no images. Turns of the
// same conversation run one at a time.
func (o *Orchestrator) HandleTurn(ctx context.Context, conversationID, author, text string) (resp model.TurnResponse) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("conversation_id", conversationID).Interface("panic", r).Msg("Turn panicked")
			resp = o.fail(fmt.Errorf("unexpected failure: %v", r))
		}
	}()

	unlock, err := o.locks.Lock(ctx, conversationID)
	if err != nil {
		return o.fail(err)
	}
	defer unlock()

	history, err := o.store.GetHistory(ctx, conversationID)
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("Failed to load conversation history")
		return o.fail(fmt.Errorf("load history: %w", err))
	}

	state := model.NewConversationState(conversationID, author, text, history)
	result, err := o.runner.Run(ctx, state)
	if err == nil && (result == nil || result.Outcome == nil || strings.TrimSpace(result.Outcome.Text()) == "") {
		err = errx.ErrNoResponse
	}
	if err != nil {
		logx.Error().Err(err).
			Str("conversation_id", conversationID).
			Str("response_type", string(state.ResponseType())).
			Msg("Turn failed")
		return o.fail(err)
	}

	// a turn that could not be saved is still answered
	if err := o.store.AppendTurn(ctx, conversationID, result.Record); err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("Failed to persist turn")
	}

	resp = model.ToResponse(result.Outcome)
	resp.CostUSD = result.CostUSD
	metrics.TurnsTotal.WithLabelValues(string(resp.ResponseType), "ok").Inc()
	metrics.TurnCostUSD.Add(result.CostUSD)

	logx.Info().
		Str("conversation_id", conversationID).
		Str("author", author).
		Str("response_type", string(resp.ResponseType)).
		Int("images", len(resp.Images)).
		Float64("cost_usd", result.CostUSD).
		Msg("Turn completed")
	return resp
}

func (o *Orchestrator) fail(err error) model.TurnResponse {
	metrics.TurnsTotal.WithLabelValues("", "error").Inc()
	return model.TurnResponse{
		Content: fallbackPrefix + err.Error(),
		Images:  []model.ImageRef{},
	}
}

type historyClearer interface {
	ClearHistory(ctx context.Context, conversationID string) error
}

// Reset forgets the stored history of a conversation.
func (o *Orchestrator) Reset(ctx context.Context, conversationID string) error {
	c, ok := o.store.(historyClearer)
	if !ok {
		return fmt.Errorf("conversation store %T cannot clear history", o.store)
	}
	unlock, err := o.locks.Lock(ctx, conversationID)
	if err != nil {
		return err
	}
	defer unlock()
	return c.ClearHistory(ctx, conversationID)
}
