package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/errgroup"

	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/graph/parsers"
	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/graph/prompts"
	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/model"
	"github.com/Chative-core-poc-v1/orchestrator/internal/resilience"
	logx "github.com/Chative-core-poc-v1/orchestrator/pkg/logger"
)

// ImageResponse extracts image requests from the message, generates them and
// presents the result. Extraction failures and turns where no image could be
// generated echo the user's message back with no images.
func (n *Nodes) ImageResponse(ctx context.Context, state *model.ConversationState) (model.TurnOutcome, error) {
	reqs, err := n.extractImageRequests(ctx, state)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logx.Warn().Err(err).Str("conversation_id", state.ConversationID).Msg("image extraction failed; echoing message")
		return n.echo(state), nil
	}

	images := n.generateImages(ctx, state, reqs)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if len(images) == 0 {
		logx.Warn().Str("conversation_id", state.ConversationID).Int("requested", len(reqs)).Msg("no image generated; echoing message")
		return n.echo(state), nil
	}

	titles := make([]string, len(images))
	for i, img := range images {
		titles[i] = img.Title
	}

	reply, err := n.summariseImages(ctx, state, titles)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logx.Warn().Err(err).Str("conversation_id", state.ConversationID).Msg("image summary failed; listing titles")
		reply = schema.AssistantMessage(strings.Join(titles, "\n"), nil)
	}
	state.Append(reply)

	parent := model.MessageID(reply)
	for i := range images {
		images[i].ParentMessageID = parent
	}
	state.AddImages(images...)
	return model.ImageOutcome{Content: reply.Content, Images: images}, nil
}

func (n *Nodes) extractImageRequests(ctx context.Context, state *model.ConversationState) ([]parsers.ImageRequest, error) {
	if n.cfg.Images == nil {
		return nil, fmt.Errorf("image generation is not configured")
	}
	sys, err := prompts.RenderImageExtract(ctx)
	if err != nil {
		return nil, err
	}
	out, err := n.generate(ctx, state, NodeImageResponse, KeyChat, n.cfg.ResponseModelName, n.cfg.Response, userTurn(state, sys))
	if err != nil {
		return nil, err
	}
	return parsers.ParseImageRequests(out.Content)
}

// generateImages runs the requests concurrently, bounded by ImageConcurrency.
// Failed requests are logged and left out; order follows the requests.
func (n *Nodes) generateImages(ctx context.Context, state *model.ConversationState, reqs []parsers.ImageRequest) []model.ImageRef {
	results := make([]*model.ImageRef, len(reqs))

	var g errgroup.Group
	g.SetLimit(n.cfg.ImageConcurrency)
	for i, req := range reqs {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					logx.Error().
						Str("conversation_id", state.ConversationID).
						Str("title", req.Title).
						Interface("panic", r).
						Msg("image generation panicked")
				}
			}()
			url, err := resilience.Execute(ctx, n.cfg.Executor, KeyImageGeneration, resilience.CategoryInference, n.cfg.Policy,
				func(ctx context.Context) (string, error) {
					return n.cfg.Images.Generate(ctx, req.Query)
				})
			if err != nil || url == "" {
				logx.Warn().Err(err).
					Str("conversation_id", state.ConversationID).
					Str("title", req.Title).
					Msg("image generation failed")
				return nil
			}
			results[i] = &model.ImageRef{Title: req.Title, URL: url}
			return nil
		})
	}
	_ = g.Wait()

	images := make([]model.ImageRef, 0, len(reqs))
	for _, r := range results {
		if r != nil {
			images = append(images, *r)
		}
	}
	return images
}

func (n *Nodes) summariseImages(ctx context.Context, state *model.ConversationState, titles []string) (*schema.Message, error) {
	sys, err := prompts.RenderImageSummary(ctx, titles)
	if err != nil {
		return nil, err
	}
	out, err := n.generate(ctx, state, NodeImageResponse, KeyChat, n.cfg.ResponseModelName, n.cfg.Response, userTurn(state, sys))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Content) == "" {
		return nil, fmt.Errorf("empty image summary")
	}
	out.ToolCalls = nil
	return out, nil
}

// echo answers with the user's own text and no images.
func (n *Nodes) echo(state *model.ConversationState) model.TurnOutcome {
	state.Append(schema.AssistantMessage(state.Pending.Content, nil))
	return model.ImageOutcome{Content: state.Pending.Content}
}
