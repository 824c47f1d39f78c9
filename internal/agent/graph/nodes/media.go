package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/orchestrator/internal/core/error"
	"github.com/Chative-core-poc-v1/orchestrator/internal/resilience"
)

// MediaResponse hands the whole turn to the media collaborator as a single
// external call.
func (n *Nodes) MediaResponse(ctx context.Context, state *model.ConversationState) (model.TurnOutcome, error) {
	if n.cfg.Media == nil {
		return nil, fmt.Errorf("%s: media requests are not configured", NodeMediaResponse)
	}

	session := model.SessionContext{
		ConversationID: state.ConversationID,
		MessageID:      model.MessageID(state.Pending),
	}
	res, err := resilience.Execute(ctx, n.cfg.Executor, KeyMedia, resilience.CategoryAuxiliaryHTTP, n.cfg.Policy,
		func(ctx context.Context) (*model.MediaResult, error) {
			return n.cfg.Media.HandleRequest(ctx, state.Pending, priorMessages(state), state.Author, session)
		})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", NodeMediaResponse, err)
	}
	if res == nil {
		return nil, fmt.Errorf("%s: %w", NodeMediaResponse, errx.ErrNoResponse)
	}

	state.Append(res.Messages...)
	reply := model.LastAIMessage(res.Messages)
	if reply == nil || strings.TrimSpace(reply.Content) == "" {
		return nil, fmt.Errorf("%s: %w", NodeMediaResponse, errx.ErrNoResponse)
	}

	parent := model.MessageID(reply)
	images := make([]model.ImageRef, len(res.Images))
	for i, img := range res.Images {
		if img.ParentMessageID == "" {
			img.ParentMessageID = parent
		}
		images[i] = img
	}
	state.AddImages(images...)
	return model.MediaOutcome{Content: reply.Content, Images: images}, nil
}

// priorMessages is the working set before the pending message, i.e. the
// history after trimming and system prompt insertion.
func priorMessages(state *model.ConversationState) []*schema.Message {
	prior := state.Working
	if k := len(prior); k > 0 && prior[k-1] == state.Pending {
		prior = prior[:k-1]
	}
	return cloneMessages(prior)
}
