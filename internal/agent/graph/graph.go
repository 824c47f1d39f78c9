package graph

import (
	"context"
	"fmt"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/compose"

	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/graph/nodes"
	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/graph/observers"
	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/graph/prompts"
	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/graph/tools"
	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/images"
	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/orchestrator/internal/core/error"
	"github.com/Chative-core-poc-v1/orchestrator/internal/resilience"
	logx "github.com/Chative-core-poc-v1/orchestrator/pkg/logger"
)

// Runner executes one turn over a prepared conversation state.
type Runner interface {
	Run(ctx context.Context, state *model.ConversationState) (*model.TurnResult, error)
}

// Stage produces the outcome of a turn for one response type.
type Stage func(ctx context.Context, state *model.ConversationState) (model.TurnOutcome, error)

// Graph drives a turn: ClassifyIntent, TrimHistory and PrependSystemPrompt,
// then exactly one response stage picked from the dispatch table. It holds no
// per-turn state and is safe for concurrent use.
type Graph struct {
	nodes    *nodes.Nodes
	dispatch map[model.ResponseType]Stage
	handlers []einocb.Handler
}

// New builds the dispatch table. Handlers receive Eino callbacks for every
// model, prompt and tool invocation of a turn.
func New(n *nodes.Nodes, handlers ...einocb.Handler) *Graph {
	return &Graph{
		nodes: n,
		dispatch: map[model.ResponseType]Stage{
			model.ResponseDefault: n.DefaultResponse,
			model.ResponseMath:    n.MathResponse,
			model.ResponseImage:   n.ImageResponse,
			model.ResponseMedia:   n.MediaResponse,
		},
		handlers: handlers,
	}
}

// Run executes the turn. The returned result holds the outcome and what the
// store has to persist; state is left as the stages produced it.
func (g *Graph) Run(ctx context.Context, state *model.ConversationState) (*model.TurnResult, error) {
	if state == nil || state.Pending == nil {
		return nil, fmt.Errorf("conversation state has no pending message")
	}
	ctx = einocb.InitCallbacks(ctx, &einocb.RunInfo{
		Name:      "ConversationGraph",
		Type:      "Dispatch",
		Component: compose.ComponentOfGraph,
	}, g.handlers...)

	if g.nodes.MediaContextActive(ctx, state) {
		logx.Debug().Str("conversation_id", state.ConversationID).Msg("Active media context; skipping intent classification")
		if err := state.SetResponseType(model.ResponseMedia); err != nil {
			return nil, err
		}
	} else if err := g.nodes.ClassifyIntent(ctx, state); err != nil {
		return nil, err
	}

	g.nodes.TrimHistory(ctx, state)
	g.nodes.PrependSystemPrompt(ctx, state)

	rt := state.ResponseType()
	stage, ok := g.dispatch[rt]
	if !ok {
		return nil, &errx.InvalidResponseTypeError{Value: string(rt)}
	}

	outcome, err := stage(ctx, state)
	if err != nil {
		return nil, err
	}
	if outcome == nil || strings.TrimSpace(outcome.Text()) == "" {
		return nil, errx.ErrNoResponse
	}

	logx.Debug().
		Str("conversation_id", state.ConversationID).
		Str("response_type", string(rt)).
		Int("tool_round_trips", state.ToolRoundTrips).
		Int("images", len(state.Images)).
		Float64("total_cost_usd", state.CostUSD).
		Msg("Turn completed")

	return &model.TurnResult{
		Outcome: outcome,
		Record:  state.Record(),
		CostUSD: state.CostUSD,
	}, nil
}

// Config holds everything needed to compose the full graph end-to-end.
// This is a convenience layer over nodes.Config that also constructs the
// Gemini models, the image generator and the tool registry.
type Config struct {
	APIKey  string
	BaseURL string

	IntentModel   model.IntentModelConfig
	ResponseModel model.ResponseModelConfig
	ImageModel    model.ImageModelConfig
	Conversation  model.ConversationConfig
	Search        model.SearchConfig

	Executor *resilience.Executor
	Policy   resilience.RetryPolicy
	Media    model.MediaRequestHandler
}

// Build composes models, tools and stages into a Graph.
func Build(ctx context.Context, cfg Config) (*Graph, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is nil")
	}

	client, err := nodes.NewClient(ctx, cfg.APIKey, cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		Client:     client,
		IntentCfg:  &cfg.IntentModel,
		RespConfig: &cfg.ResponseModel,
	})
	if err != nil {
		return nil, err
	}

	imageGen := images.NewImagenGenerator(client, cfg.ImageModel)

	registry, err := tools.NewRegistry(ctx, cfg.Executor, cfg.Policy,
		tools.NewCurrentDateTool(nil),
		tools.NewWebSearchTool(tools.NewSearcher(cfg.Search, nil)),
		tools.NewGenerateImageTool(imageGen),
	)
	if err != nil {
		return nil, err
	}
	if err := cms.BindToolsToAgentModel(registry.Infos()); err != nil {
		return nil, err
	}

	systemPrompt, err := prompts.RenderSystem(ctx, cfg.Conversation.SystemPrompt, registry.Names())
	if err != nil {
		return nil, err
	}

	n, err := nodes.New(nodes.Config{
		Intent:            cms.Intent,
		Response:          cms.Response,
		Agent:             cms.Agent,
		IntentModelName:   cms.IntentModelName,
		ResponseModelName: cms.ResponseModelName,
		Tools:             registry,
		Images:            imageGen,
		Media:             cfg.Media,
		Executor:          cfg.Executor,
		Policy:            cfg.Policy,
		SystemPrompt:      systemPrompt,
		TokenCeiling:      cfg.Conversation.TokenCeiling,
		MaxToolRoundTrips: cfg.Conversation.ToolMaxRoundTrips,
		ImageConcurrency:  cfg.ImageModel.MaxConcurrency,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Strs("tools", registry.Names()).Msg("Conversation graph built successfully")
	return New(n, observers.NewAllCallbacks()), nil
}
