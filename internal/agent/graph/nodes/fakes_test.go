package nodes

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/model"
	"github.com/Chative-core-poc-v1/orchestrator/internal/resilience"
)

type reply struct {
	msg *schema.Message
	err error
}

// scriptedModel answers Generate calls from a fixed script.
type scriptedModel struct {
	mu      sync.Mutex
	replies []reply
	calls   [][]*schema.Message
}

func script(replies ...reply) *scriptedModel {
	return &scriptedModel{replies: replies}
}

func says(content string) reply {
	return reply{msg: schema.AssistantMessage(content, nil)}
}

func saysWithUsage(content string, total int) reply {
	msg := schema.AssistantMessage(content, nil)
	msg.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: total / 2, CompletionTokens: total - total/2, TotalTokens: total}}
	return reply{msg: msg}
}

func callsTool(name, args string) reply {
	return reply{msg: schema.AssistantMessage("", []schema.ToolCall{{
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}})}
}

func fails(err error) reply {
	return reply{err: err}
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, append([]*schema.Message(nil), input...))
	if len(m.replies) == 0 {
		return nil, errors.New("unexpected model call")
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	return r.msg, r.err
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// echoRegistry answers every tool call with a fixed JSON body.
type echoRegistry struct {
	mu    sync.Mutex
	calls []schema.ToolCall
}

func (r *echoRegistry) Execute(_ context.Context, call schema.ToolCall) (*schema.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	return schema.ToolMessage(`{"ok":true}`, call.ID, schema.WithToolName(call.Function.Name)), nil
}

// mapGenerator returns a URL per query, or an error for unknown queries.
type mapGenerator struct {
	mu   sync.Mutex
	urls map[string]string
	hits int
}

func (g *mapGenerator) Generate(_ context.Context, query string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hits++
	if url, ok := g.urls[query]; ok {
		return url, nil
	}
	return "", errors.New("generation failed")
}

type fakeMedia struct {
	active    bool
	activeErr error
	result    *model.MediaResult
	err       error
	gotUser   string
	gotMsg    *schema.Message
	gotHist   []*schema.Message
	session   model.SessionContext
}

func (f *fakeMedia) HandleRequest(_ context.Context, message *schema.Message, history []*schema.Message, userID string, session model.SessionContext) (*model.MediaResult, error) {
	f.gotUser, f.gotMsg, f.gotHist, f.session = userID, message, history, session
	return f.result, f.err
}

func (f *fakeMedia) HasActiveMediaContext(_ context.Context, _ string, _ *schema.Message) (bool, error) {
	return f.active, f.activeErr
}

func testPolicy() resilience.RetryPolicy {
	return resilience.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
}

func newTestExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.DefaultBreakerSettings,
		resilience.WithSleeper(func(context.Context, time.Duration) error { return nil }))
}

func newTestNodes(t *testing.T, cfg Config) *Nodes {
	t.Helper()
	if cfg.Intent == nil {
		cfg.Intent = script()
	}
	if cfg.Response == nil {
		cfg.Response = script()
	}
	if cfg.Executor == nil {
		cfg.Executor = newTestExecutor()
	}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = testPolicy()
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = "you are helpful"
	}
	n, err := New(cfg)
	require.NoError(t, err)
	return n
}

// preparedState returns a state whose working set already holds the system
// prompt and the pending message, as after PrependSystemPrompt.
func preparedState(text string) *model.ConversationState {
	s := model.NewConversationState("conv-1", "alice", text, nil)
	s.Working = []*schema.Message{model.NewSystemPrompt("you are helpful"), s.Pending}
	return s
}
