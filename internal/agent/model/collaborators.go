package model

import (
	"context"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatModel is the inference backend as seen by the graph. Gemini chat models
// satisfy it directly.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error)
}

// ToolRegistry executes named tools requested by the model.
type ToolRegistry interface {
	Execute(ctx context.Context, call schema.ToolCall) (*schema.Message, error)
}

// ImageGenerator turns a query into an image URL.
type ImageGenerator interface {
	Generate(ctx context.Context, query string) (string, error)
}

// SessionContext identifies the turn a media request belongs to.
type SessionContext struct {
	ConversationID string
	MessageID      string
}

// MediaResult is what the media collaborator produced for a turn.
type MediaResult struct {
	Images   []ImageRef
	Messages []*schema.Message
}

// MediaRequestHandler owns media turns end to end.
type MediaRequestHandler interface {
	HandleRequest(ctx context.Context, message *schema.Message, history []*schema.Message, userID string, session SessionContext) (*MediaResult, error)
	HasActiveMediaContext(ctx context.Context, userID string, message *schema.Message) (bool, error)
}
