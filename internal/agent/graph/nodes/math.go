package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/graph/parsers"
	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/graph/prompts"
	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/orchestrator/internal/core/error"
)

// LatexKey is the Extra key carrying the full solution on a math reply.
const LatexKey = "latex"

const mathFallbackSummary = "Here is the step-by-step solution."

// MathResponse solves the problem in one call and summarises it in a second,
// separate call. The summary never repeats the solution; tools are not used.
func (n *Nodes) MathResponse(ctx context.Context, state *model.ConversationState) (model.TurnOutcome, error) {
	solveSys, err := prompts.RenderMathSolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", NodeMathResponse, err)
	}
	solution, err := n.generate(ctx, state, NodeMathResponse, KeyChat, n.cfg.ResponseModelName, n.cfg.Response, userTurn(state, solveSys))
	if err != nil {
		return nil, err
	}
	latex := parsers.StripCodeFence(solution.Content)
	if latex == "" {
		return nil, fmt.Errorf("%s: empty solution: %w", NodeMathResponse, errx.ErrNoResponse)
	}

	summarySys, err := prompts.RenderMathSummary(ctx, latex)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", NodeMathResponse, err)
	}
	summary, err := n.generate(ctx, state, NodeMathResponse, KeyChat, n.cfg.ResponseModelName, n.cfg.Response, userTurn(state, summarySys))
	if err != nil {
		return nil, err
	}

	content := withoutSolution(summary.Content, latex)
	if content == "" {
		content = mathFallbackSummary
	}
	summary.Content = content
	summary.ToolCalls = nil
	if summary.Extra == nil {
		summary.Extra = map[string]any{}
	}
	summary.Extra[LatexKey] = latex
	state.Append(summary)
	state.Latex = latex

	return model.MathOutcome{Content: content, Latex: latex}, nil
}

// withoutSolution removes verbatim copies of the solution from a summary.
func withoutSolution(summary, latex string) string {
	if latex != "" {
		summary = strings.ReplaceAll(summary, latex, "")
	}
	return strings.TrimSpace(summary)
}
