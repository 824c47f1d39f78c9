package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/model"
)

var (
	//go:embed template/intent_prompt.txt
	intentPrompt string
	//go:embed template/system_prompt.txt
	systemPrompt string
	//go:embed template/math_solve_prompt.txt
	mathSolvePrompt string
	//go:embed template/math_summary_prompt.txt
	mathSummaryPrompt string
	//go:embed template/image_extract_prompt.txt
	imageExtractPrompt string
	//go:embed template/image_summary_prompt.txt
	imageSummaryPrompt string
	//go:embed template/tool_limit_notice.txt
	toolLimitNotice string
)

// MaxImageRequests is advertised to the extraction model.
const MaxImageRequests = 4

// render formats a single system template through the Eino prompt component
// so prompt callbacks fire for it.
func render(ctx context.Context, name, tpl string, vars map[string]any) (string, error) {
	ctx = einocb.ReuseHandlers(ctx, &einocb.RunInfo{
		Name:      name,
		Type:      "GoTemplate",
		Component: components.ComponentOfPrompt,
	})
	msgs, err := prompt.FromMessages(schema.GoTemplate, schema.SystemMessage(tpl)).Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%s prompt render: empty result", name)
	}
	return strings.TrimSpace(msgs[0].Content), nil
}

// RenderIntentSystem renders the instruction for the intent classifier.
func RenderIntentSystem(ctx context.Context) (string, error) {
	names := make([]string, 0, len(model.ResponseTypes))
	for _, rt := range model.ResponseTypes {
		names = append(names, string(rt))
	}
	return render(ctx, "intent", intentPrompt, map[string]any{
		"Types": strings.Join(names, ", "),
	})
}

// RenderSystem returns the conversation's system prompt. A configured
// override wins over the built-in template.
func RenderSystem(ctx context.Context, override string, toolNames []string) (string, error) {
	if s := strings.TrimSpace(override); s != "" {
		return s, nil
	}
	return render(ctx, "system", systemPrompt, map[string]any{
		"Tools": strings.Join(toolNames, ", "),
	})
}

func RenderMathSolve(ctx context.Context) (string, error) {
	return render(ctx, "math_solve", mathSolvePrompt, nil)
}

func RenderMathSummary(ctx context.Context, latex string) (string, error) {
	return render(ctx, "math_summary", mathSummaryPrompt, map[string]any{"Latex": latex})
}

func RenderImageExtract(ctx context.Context) (string, error) {
	return render(ctx, "image_extract", imageExtractPrompt, map[string]any{"Max": MaxImageRequests})
}

func RenderImageSummary(ctx context.Context, titles []string) (string, error) {
	return render(ctx, "image_summary", imageSummaryPrompt, map[string]any{"Titles": titles})
}

// RenderToolLimitNotice renders the wrap-up instruction used once the tool
// round-trip limit is hit.
func RenderToolLimitNotice(ctx context.Context, max int) (string, error) {
	return render(ctx, "tool_limit", toolLimitNotice, map[string]any{"Max": max})
}
