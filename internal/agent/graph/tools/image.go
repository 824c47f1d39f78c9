package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/model"
)

// ===================================
// Generate Image Tool
// ===================================

type GenerateImageInput struct {
	Title  string `json:"title,omitempty"`
	Prompt string `json:"prompt"`
}

type GenerateImageOutput struct {
	Title  string `json:"title"`
	Status string `json:"status"`
}

// ImageSink collects images produced by tools during one tool round.
type ImageSink struct {
	mu     sync.Mutex
	images []model.ImageRef
}

func (s *ImageSink) add(img model.ImageRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = append(s.images, img)
}

// Images returns what was collected so far.
func (s *ImageSink) Images() []model.ImageRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ImageRef, len(s.images))
	copy(out, s.images)
	return out
}

type imageSinkKey struct{}

// WithImageSink makes generated images visible to the caller instead of the
// model, which only sees a short status.
func WithImageSink(ctx context.Context, sink *ImageSink) context.Context {
	return context.WithValue(ctx, imageSinkKey{}, sink)
}

func imageSinkFrom(ctx context.Context) *ImageSink {
	s, _ := ctx.Value(imageSinkKey{}).(*ImageSink)
	return s
}

func NewGenerateImageTool(gen model.ImageGenerator) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolGenerateImage,
			Desc: "Generate a picture from a text description. The picture is shown to the user next to your reply; you only get a confirmation.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"prompt": {
					Type:     "string",
					Desc:     "Detailed English description of the picture.",
					Required: true,
				},
				"title": {
					Type: "string",
					Desc: "Short caption shown with the picture.",
				},
			}),
		},
		func(ctx context.Context, in *GenerateImageInput) (*GenerateImageOutput, error) {
			if in == nil || in.Prompt == "" {
				return nil, fmt.Errorf("prompt is required")
			}
			url, err := gen.Generate(ctx, in.Prompt)
			if err != nil {
				return nil, err
			}
			title := in.Title
			if title == "" {
				title = in.Prompt
			}
			if sink := imageSinkFrom(ctx); sink != nil {
				sink.add(model.ImageRef{Title: title, URL: url})
			}
			return &GenerateImageOutput{Title: title, Status: "generated"}, nil
		},
	)
}
