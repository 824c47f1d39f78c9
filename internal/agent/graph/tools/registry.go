package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-core-poc-v1/orchestrator/internal/resilience"
	logx "github.com/Chative-core-poc-v1/orchestrator/pkg/logger"
)

const (
	ToolCurrentDate   = "get_current_date"
	ToolWebSearch     = "web_search"
	ToolGenerateImage = "generate_image"
)

// Registry runs model-requested tool calls. Each call goes through the
// resilient executor under its own dependency key; a call that still fails
// becomes a JSON error result the model can read instead of failing the turn.
type Registry struct {
	node     *compose.ToolsNode
	infos    []*schema.ToolInfo
	byName   map[string]struct{}
	executor *resilience.Executor
	policy   resilience.RetryPolicy
}

func NewRegistry(ctx context.Context, executor *resilience.Executor, policy resilience.RetryPolicy, ts ...tool.BaseTool) (*Registry, error) {
	if executor == nil {
		return nil, fmt.Errorf("tool registry: executor is nil")
	}

	infos := make([]*schema.ToolInfo, 0, len(ts))
	byName := make(map[string]struct{}, len(ts))
	for _, t := range ts {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info: %w", err)
		}
		if _, dup := byName[info.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", info.Name)
		}
		byName[info.Name] = struct{}{}
		infos = append(infos, info)
	}

	node, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:                ts,
		ExecuteSequentially:  true,
		UnknownToolsHandler:  unknownTool,
		ToolArgumentsHandler: sanitizeArguments,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Failed to create tools node")
		return nil, fmt.Errorf("failed to create tools node: %w", err)
	}

	return &Registry{node: node, infos: infos, byName: byName, executor: executor, policy: policy}, nil
}

// Infos returns the definitions to bind to the agent model.
func (r *Registry) Infos() []*schema.ToolInfo {
	return r.infos
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Execute runs one tool call and returns its Tool message. The only error it
// returns is the caller's context ending.
func (r *Registry) Execute(ctx context.Context, call schema.ToolCall) (*schema.Message, error) {
	name := strings.TrimSpace(call.Function.Name)
	if _, ok := r.byName[name]; !ok {
		content, _ := unknownTool(ctx, name, call.Function.Arguments)
		return schema.ToolMessage(content, call.ID, schema.WithToolName(name)), nil
	}

	key := "tool:" + name
	msgs, err := resilience.Execute(ctx, r.executor, key, resilience.CategoryAuxiliaryHTTP, r.policy,
		func(ctx context.Context) ([]*schema.Message, error) {
			return r.node.Invoke(ctx, schema.AssistantMessage("", []schema.ToolCall{call}))
		})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logx.Warn().Err(err).Str("tool_name", name).Str("tool_call_id", call.ID).Msg("tool failed; returning error result")
		return schema.ToolMessage(errorResult(name, err), call.ID, schema.WithToolName(name)), nil
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return schema.ToolMessage(errorResult(name, fmt.Errorf("tool returned no result")), call.ID, schema.WithToolName(name)), nil
	}
	return msgs[0], nil
}

// unknownTool handles hallucinated or malformed tool calls (e.g., empty name).
func unknownTool(_ context.Context, name, input string) (string, error) {
	logx.Warn().
		Str("tool_name", name).
		Str("arguments", input).
		Msg("Unknown or invalid tool call; returning fallback result")
	return fmt.Sprintf("{\"error\":\"unknown_tool\",\"name\":%q,\"note\":\"ignored\"}", name), nil
}

func errorResult(name string, err error) string {
	b, mErr := json.Marshal(map[string]string{"error": "tool_failed", "name": name, "message": err.Error()})
	if mErr != nil {
		return fmt.Sprintf("{\"error\":\"tool_failed\",\"name\":%q}", name)
	}
	return string(b)
}

// sanitizeArguments normalises model-produced arguments. It never fails;
// arguments it cannot read are passed through untouched.
func sanitizeArguments(_ context.Context, name, arguments string) (string, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(arguments), &m); err != nil {
		return arguments, nil
	}

	switch name {
	case ToolWebSearch:
		trimString(m, "query", true)
		if v, ok := m["max_results"]; ok {
			switch vv := v.(type) {
			case float64:
				// JSON numbers decode as float64
				m["max_results"] = clampInt(int(vv), 1, maxSearchResults)
			case string:
				if n, err := strconv.Atoi(strings.TrimSpace(vv)); err == nil {
					m["max_results"] = clampInt(n, 1, maxSearchResults)
				} else {
					delete(m, "max_results")
				}
			default:
				delete(m, "max_results")
			}
		}
	case ToolCurrentDate:
		trimString(m, "timezone", false)
	case ToolGenerateImage:
		trimString(m, "prompt", true)
		trimString(m, "title", false)
	}

	b, err := json.Marshal(m)
	if err != nil {
		return arguments, nil
	}
	return string(b), nil
}

// trimString trims m[key]. Required keys holding a non-string are coerced to
// a string; optional ones are dropped.
func trimString(m map[string]any, key string, required bool) {
	v, ok := m[key]
	if !ok {
		return
	}
	switch vv := v.(type) {
	case string:
		m[key] = strings.TrimSpace(vv)
	default:
		if required {
			m[key] = strings.TrimSpace(fmt.Sprint(v))
		} else {
			delete(m, key)
		}
	}
}

// clampInt returns v limited to [min, max].
func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
