package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/model"
	logx "github.com/Chative-core-poc-v1/orchestrator/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	Client     *genai.Client
	IntentCfg  *model.IntentModelConfig
	RespConfig *model.ResponseModelConfig
}

// ChatModels holds the intent, plain response and tool-enabled agent models.
type ChatModels struct {
	Intent            *gemini.ChatModel
	Response          *gemini.ChatModel
	Agent             *gemini.ChatModel
	IntentModelName   string
	ResponseModelName string
}

// NewClient creates the Gemini API client shared by chat and image models.
func NewClient(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientCfg.HTTPOptions.BaseURL = baseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return client, nil
}

// NewChatModels creates the chat models with the given configuration
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	if config.Client == nil || config.IntentCfg == nil || config.RespConfig == nil {
		return nil, fmt.Errorf("chat model config is incomplete")
	}

	// Intent answers with one word; thinking only adds latency.
	chatModelIntent, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      config.Client,
		Model:       config.IntentCfg.Model,
		Temperature: &config.IntentCfg.Temperature,
		MaxTokens:   &config.IntentCfg.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(int32(0)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating intent model")
		return nil, fmt.Errorf("error creating intent model: %w", err)
	}

	newResponseModel := func() (*gemini.ChatModel, error) {
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client:      config.Client,
			Model:       config.RespConfig.Model,
			Temperature: &config.RespConfig.Temperature,
			MaxTokens:   &config.RespConfig.MaxTokens,
			ThinkingConfig: &genai.ThinkingConfig{
				ThinkingBudget: genai.Ptr(int32(2000)),
			},
		})
	}

	chatModelResponse, err := newResponseModel()
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Response model")
		return nil, fmt.Errorf("error creating Response model: %w", err)
	}

	chatModelAgent, err := newResponseModel()
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Agent model")
		return nil, fmt.Errorf("error creating Agent model: %w", err)
	}

	return &ChatModels{
		Intent:            chatModelIntent,
		Response:          chatModelResponse,
		Agent:             chatModelAgent,
		IntentModelName:   config.IntentCfg.Model,
		ResponseModelName: config.RespConfig.Model,
	}, nil
}

// BindToolsToAgentModel binds tools to the agent chat model. The plain
// response model stays tool-free so wrap-up calls cannot request more tools.
func (cm *ChatModels) BindToolsToAgentModel(tools []*schema.ToolInfo) error {
	if len(tools) == 0 {
		return nil
	}
	if err := cm.Agent.BindTools(tools); err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools")
		return fmt.Errorf("failed to bind tools: %w", err)
	}

	logx.Debug().Int("tools", len(tools)).Msg("Successfully bound tools to agent model")
	return nil
}
