package nodes

import (
	"context"
	"fmt"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/orchestrator/internal/core/error"
	"github.com/Chative-core-poc-v1/orchestrator/internal/resilience"
	logx "github.com/Chative-core-poc-v1/orchestrator/pkg/logger"
)

// Stage names.
const (
	NodeClassifyIntent      = "ClassifyIntent"
	NodeTrimHistory         = "TrimHistory"
	NodePrependSystemPrompt = "PrependSystemPrompt"
	NodeDefaultResponse     = "DefaultResponse"
	NodeToolExecution       = "ToolExecution"
	NodeMathResponse        = "MathResponse"
	NodeImageResponse       = "ImageResponse"
	NodeMediaResponse       = "MediaResponse"
)

// Dependency keys used for circuit breaking.
const (
	KeyIntent          = "inference:intent"
	KeyChat            = "inference:chat"
	KeyAgent           = "inference:agent"
	KeyImageGeneration = "inference:image"
	KeyMedia           = "media:request"
)

// Config wires the stages to their collaborators.
type Config struct {
	Intent   model.ChatModel
	Response model.ChatModel
	// Agent has the tools bound; Response is used when it is nil.
	Agent model.ChatModel

	IntentModelName   string
	ResponseModelName string

	Tools  model.ToolRegistry
	Images model.ImageGenerator
	Media  model.MediaRequestHandler

	Executor *resilience.Executor
	Policy   resilience.RetryPolicy

	SystemPrompt      string
	TokenCeiling      int
	MaxToolRoundTrips int
	ImageConcurrency  int
}

// Nodes holds the stage implementations. It carries no per-turn state and is
// shared by all turns.
type Nodes struct {
	cfg Config
}

func New(cfg Config) (*Nodes, error) {
	if cfg.Intent == nil || cfg.Response == nil {
		return nil, fmt.Errorf("intent and response models are required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is nil")
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	if cfg.Agent == nil {
		cfg.Agent = cfg.Response
	}
	cfg.MaxToolRoundTrips = normalizeMaxToolRoundTrips(cfg.MaxToolRoundTrips)
	if cfg.ImageConcurrency <= 0 {
		cfg.ImageConcurrency = 1
	}
	return &Nodes{cfg: cfg}, nil
}

// generate runs one model call through the executor and accounts its usage.
// The returned message has not entered the conversation yet.
func (n *Nodes) generate(
	ctx context.Context,
	state *model.ConversationState,
	stage, key, modelName string,
	cm model.ChatModel,
	msgs []*schema.Message,
) (*schema.Message, error) {
	ctx = einocb.ReuseHandlers(ctx, &einocb.RunInfo{
		Name:      stage,
		Type:      modelName,
		Component: components.ComponentOfChatModel,
	})
	out, err := resilience.Execute(ctx, n.cfg.Executor, key, resilience.CategoryInference, n.cfg.Policy,
		func(ctx context.Context) (*schema.Message, error) {
			return cm.Generate(ctx, msgs)
		})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", stage, err)
	}
	if out == nil {
		return nil, fmt.Errorf("%s: %w", stage, errx.ErrNoResponse)
	}
	n.account(state, stage, modelName, out)
	return out, nil
}

// account logs the call's usage and adds its cost to the turn.
func (n *Nodes) account(state *model.ConversationState, stage, modelName string, out *schema.Message) {
	usage, ok := model.UsageOf(modelName, out)
	if !ok {
		return
	}
	state.CostUSD += usage.TotalCostUSD
	logx.Debug().
		Str("conversation_id", state.ConversationID).
		Str("node", stage).
		Str("model", modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("input_cost_usd", usage.InputCostUSD).
		Float64("output_cost_usd", usage.OutputCostUSD).
		Float64("total_cost_usd", usage.TotalCostUSD).
		Msg("LLM usage")
}

// userTurn pairs a stage instruction with the pending user text.
func userTurn(state *model.ConversationState, instruction string) []*schema.Message {
	return []*schema.Message{
		schema.SystemMessage(instruction),
		schema.UserMessage(state.Pending.Content),
	}
}
