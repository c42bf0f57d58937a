package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superego-agent/gateflow/pkg/adapters/memory"
	"github.com/superego-agent/gateflow/pkg/domain"
	"github.com/superego-agent/gateflow/pkg/ports"
	"github.com/superego-agent/gateflow/pkg/registry"
)

// scriptedModel replays a fixed sequence of turns. When the script is
// exhausted it repeats the last turn, which keeps multi-turn tests short.
type scriptedModel struct {
	mu    sync.Mutex
	turns []func(req ports.ModelRequest) (domain.Message, error)
	calls int
}

func (m *scriptedModel) Invoke(ctx context.Context, req ports.ModelRequest) (domain.Message, error) {
	m.mu.Lock()
	i := m.calls
	m.calls++
	m.mu.Unlock()

	if i >= len(m.turns) {
		i = len(m.turns) - 1
	}
	return m.turns[i](req)
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func say(content string) func(ports.ModelRequest) (domain.Message, error) {
	return func(ports.ModelRequest) (domain.Message, error) {
		return domain.Message{Content: content}, nil
	}
}

func callTool(name string, args map[string]any) func(ports.ModelRequest) (domain.Message, error) {
	return func(ports.ModelRequest) (domain.Message, error) {
		return domain.Message{ToolCalls: []domain.ToolCall{{Name: name, Args: args}}}, nil
	}
}

func fail(err error) func(ports.ModelRequest) (domain.Message, error) {
	return func(ports.ModelRequest) (domain.Message, error) {
		return domain.Message{}, err
	}
}

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	require.NoError(t, r.Register(registry.NewDecisionTool()))
	require.NoError(t, r.Register(registry.NewCalculatorTool()))
	return r
}

func newEngine(t *testing.T, store ports.CheckpointStore, policy, response ports.ModelClient, opts ...EngineOption) *Engine {
	t.Helper()
	return NewEngine(store, newRegistry(t), policy, response, opts...)
}

func roles(messages []domain.Message) []domain.Role {
	out := make([]domain.Role, len(messages))
	for i, m := range messages {
		out[i] = m.Role
	}
	return out
}

func TestAdvance_GatedPassThrough(t *testing.T) {
	// Policy stage answers without a tool call: implicit allow.
	store := memory.NewStore()
	policy := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){say("reviewed, nothing to flag")}}
	response := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){say("hello back")}}
	engine := newEngine(t, store, policy, response)

	messages, err := engine.Advance(context.Background(), "s1", "hello", domain.Config{Variant: domain.VariantGated})
	require.NoError(t, err)

	assert.Equal(t, []domain.Role{domain.RoleUser, domain.RolePolicy, domain.RoleResponse}, roles(messages))
	assert.Equal(t, "hello back", messages[2].Content)

	saved, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.NodeTerminal, saved.CurrentNode)
	assert.Equal(t, messages, saved.Messages, "returned transcript must match the committed checkpoint")
}

func TestAdvance_GatedDeny(t *testing.T) {
	store := memory.NewStore()
	policy := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){
		callTool(domain.DecisionToolName, map[string]any{"allow": false, "message": "blocked: unsafe"}),
	}}
	response := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){say("must not run")}}
	engine := newEngine(t, store, policy, response)

	messages, err := engine.Advance(context.Background(), "s2", "do something bad", domain.Config{Variant: domain.VariantGated})
	require.NoError(t, err)

	assert.Equal(t, []domain.Role{domain.RoleUser, domain.RolePolicy, domain.RoleTool}, roles(messages))
	last := messages[len(messages)-1]
	assert.Equal(t, domain.DecisionDeny, domain.ParseDecision(last.Content))
	assert.Contains(t, last.Content, "blocked: unsafe")
	assert.Equal(t, 0, response.callCount(), "response model must not run after a deny")
}

func TestAdvance_GatedAllow(t *testing.T) {
	store := memory.NewStore()
	policy := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){
		callTool(domain.DecisionToolName, map[string]any{"allow": true, "message": "fine"}),
	}}
	response := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){say("here you go")}}
	engine := newEngine(t, store, policy, response)

	messages, err := engine.Advance(context.Background(), "s1", "hello", domain.Config{Variant: domain.VariantGated})
	require.NoError(t, err)

	assert.Equal(t, []domain.Role{domain.RoleUser, domain.RolePolicy, domain.RoleTool, domain.RoleResponse}, roles(messages))
	assert.Equal(t, domain.DecisionAllow, domain.ParseDecision(messages[2].Content))
	assert.Equal(t, "here you go", messages[3].Content)
}

func TestAdvance_UngatedCalculator(t *testing.T) {
	store := memory.NewStore()
	policy := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){say("never called")}}
	response := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){
		callTool("calculator", map[string]any{"expression": "2+2"}),
		say("the answer is 4"),
	}}
	engine := newEngine(t, store, policy, response)

	messages, err := engine.Advance(context.Background(), "s3", "what is 2+2?", domain.Config{Variant: domain.VariantUngated})
	require.NoError(t, err)

	assert.Equal(t, []domain.Role{domain.RoleUser, domain.RoleResponse, domain.RoleTool, domain.RoleResponse}, roles(messages))
	assert.Equal(t, "4", messages[2].Content)
	assert.Equal(t, "calculator", messages[2].OriginTool)
	assert.Equal(t, 0, policy.callCount(), "ungated variant never visits the gate")
}

func TestAdvance_MalformedDecisionFailsClosed(t *testing.T) {
	store := memory.NewStore()
	// The model calls the decision tool without the required allow flag, so
	// the registry returns an error result with no recognizable marker.
	policy := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){
		callTool(domain.DecisionToolName, map[string]any{"message": "no verdict"}),
	}}
	response := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){say("must not run")}}

	var decisions []domain.Decision
	hooks := domain.LifecycleHooks{
		OnDecision: func(_ context.Context, ev *domain.DecisionEvent) {
			decisions = append(decisions, ev.Decision)
		},
	}
	engine := newEngine(t, store, policy, response, WithLifecycleHooks(hooks))

	messages, err := engine.Advance(context.Background(), "s1", "hello", domain.Config{Variant: domain.VariantGated})
	require.NoError(t, err)

	assert.Equal(t, []domain.Role{domain.RoleUser, domain.RolePolicy, domain.RoleTool}, roles(messages))
	assert.Equal(t, 0, response.callCount())
	assert.Equal(t, []domain.Decision{domain.DecisionMalformed}, decisions)
}

func TestAdvance_UnknownToolContinuesToAct(t *testing.T) {
	store := memory.NewStore()
	policy := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){say("pass")}}
	response := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){
		callTool("weather", map[string]any{"city": "Lisbon"}),
		say("could not check the weather"),
	}}
	engine := newEngine(t, store, policy, response)

	messages, err := engine.Advance(context.Background(), "s1", "weather?", domain.Config{Variant: domain.VariantGated})
	require.NoError(t, err)

	assert.Equal(t, []domain.Role{
		domain.RoleUser, domain.RolePolicy, domain.RoleResponse, domain.RoleTool, domain.RoleResponse,
	}, roles(messages))
	assert.Contains(t, messages[3].Content, "tool not found")
	assert.Equal(t, "could not check the weather", messages[4].Content)
}

func TestAdvance_MultipleToolCallsResolveInOrder(t *testing.T) {
	store := memory.NewStore()
	policy := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){say("pass")}}
	response := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){
		func(ports.ModelRequest) (domain.Message, error) {
			return domain.Message{ToolCalls: []domain.ToolCall{
				{ID: "call_a", Name: "calculator", Args: map[string]any{"expression": "1+1"}},
				{ID: "call_b", Name: "calculator", Args: map[string]any{"expression": "2+3"}},
			}}, nil
		},
		say("done"),
	}}
	engine := newEngine(t, store, policy, response)

	messages, err := engine.Advance(context.Background(), "s1", "sum things", domain.Config{Variant: domain.VariantGated})
	require.NoError(t, err)

	require.Len(t, messages, 6)
	assert.Equal(t, "call_a", messages[3].ToolCallID)
	assert.Equal(t, "2", messages[3].Content)
	assert.Equal(t, "call_b", messages[4].ToolCallID)
	assert.Equal(t, "5", messages[4].Content)
}

func TestAdvance_ConfigErrors(t *testing.T) {
	store := memory.NewStore()
	policy := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){say("pass")}}
	response := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){say("hi")}}
	engine := newEngine(t, store, policy, response)
	ctx := context.Background()

	var cfgErr *domain.ConfigError

	_, err := engine.Advance(ctx, "", "hello", domain.Config{Variant: domain.VariantGated})
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "session_id", cfgErr.Field)

	_, err = engine.Advance(ctx, "s1", "hello", domain.Config{Variant: "supervised"})
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "variant", cfgErr.Field)

	// Rejected before any node executes: no checkpoint was written.
	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	// A session cannot switch variants mid-life.
	_, err = engine.Advance(ctx, "s1", "hello", domain.Config{Variant: domain.VariantGated})
	require.NoError(t, err)
	_, err = engine.Advance(ctx, "s1", "again", domain.Config{Variant: domain.VariantUngated})
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "variant", cfgErr.Field)
}

func TestAdvance_RetryAfterExecutorFailure(t *testing.T) {
	store := memory.NewStore()
	policy := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){say("pass")}}
	response := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){
		fail(errors.New("model timeout")),
		say("recovered"),
	}}
	engine := newEngine(t, store, policy, response)
	ctx := context.Background()

	_, err := engine.Advance(ctx, "s1", "hello", domain.Config{Variant: domain.VariantGated})
	var stepErr *domain.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, domain.NodeAct, stepErr.Node)

	// The failed step was not committed; the session is resumable.
	saved, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.NodeAct, saved.CurrentNode)
	assert.Equal(t, []domain.Role{domain.RoleUser, domain.RolePolicy}, roles(saved.Messages))

	// Retrying the same inputs resumes from the committed node without
	// duplicating the user message or re-running the gate.
	messages, err := engine.Advance(ctx, "s1", "hello", domain.Config{Variant: domain.VariantGated})
	require.NoError(t, err)
	assert.Equal(t, []domain.Role{domain.RoleUser, domain.RolePolicy, domain.RoleResponse}, roles(messages))
	assert.Equal(t, "recovered", messages[2].Content)
	assert.Equal(t, 1, policy.callCount())
}

func TestAdvance_MultiTurn(t *testing.T) {
	store := memory.NewStore()
	policy := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){say("pass")}}
	response := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){say("turn answered")}}
	engine := newEngine(t, store, policy, response)
	ctx := context.Background()
	cfg := domain.Config{Variant: domain.VariantGated}

	first, err := engine.Advance(ctx, "s1", "first", cfg)
	require.NoError(t, err)
	require.Len(t, first, 3)

	second, err := engine.Advance(ctx, "s1", "second", cfg)
	require.NoError(t, err)
	require.Len(t, second, 6)
	assert.Equal(t, "second", second[3].Content)
	assert.Equal(t, domain.RoleUser, second[3].Role)
}

func TestAdvance_StepLimit(t *testing.T) {
	store := memory.NewStore()
	policy := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){say("pass")}}
	// The response stage loops on tool calls forever.
	response := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){
		callTool("calculator", map[string]any{"expression": "1+1"}),
	}}
	engine := newEngine(t, store, policy, response, WithMaxSteps(6))

	_, err := engine.Advance(context.Background(), "s1", "loop", domain.Config{Variant: domain.VariantGated})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStepLimit)
}

func TestAdvance_CancellationPreservesCheckpoint(t *testing.T) {
	store := memory.NewStore()
	policy := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){say("pass")}}
	response := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){say("late answer")}}
	engine := newEngine(t, store, policy, response)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Advance(ctx, "s1", "hello", domain.Config{Variant: domain.VariantGated})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// The prior checkpoint is intact and the run resumes cleanly.
	messages, err := engine.Advance(context.Background(), "s1", "hello", domain.Config{Variant: domain.VariantGated})
	require.NoError(t, err)
	assert.Equal(t, []domain.Role{domain.RoleUser, domain.RolePolicy, domain.RoleResponse}, roles(messages))
}

func TestAdvance_StrictGate(t *testing.T) {
	store := memory.NewStore()
	policy := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){say("no verdict rendered")}}
	response := &scriptedModel{turns: []func(ports.ModelRequest) (domain.Message, error){say("must not run")}}
	engine := newEngine(t, store, policy, response, WithStrictGate())

	messages, err := engine.Advance(context.Background(), "s1", "hello", domain.Config{Variant: domain.VariantGated})
	require.NoError(t, err)

	assert.Equal(t, []domain.Role{domain.RoleUser, domain.RolePolicy}, roles(messages))
	assert.Equal(t, 0, response.callCount())
}

func TestAdvance_GateBindsOnlyDecisionTool(t *testing.T) {
	store := memory.NewStore()

	var gateTools, actTools []string
	policy := ports.ModelFunc(func(ctx context.Context, req ports.ModelRequest) (domain.Message, error) {
		for _, spec := range req.Tools {
			gateTools = append(gateTools, spec.Name)
		}
		return domain.Message{Content: "pass"}, nil
	})
	response := ports.ModelFunc(func(ctx context.Context, req ports.ModelRequest) (domain.Message, error) {
		for _, spec := range req.Tools {
			actTools = append(actTools, spec.Name)
		}
		return domain.Message{Content: "hi"}, nil
	})
	engine := newEngine(t, store, policy, response)

	_, err := engine.Advance(context.Background(), "s1", "hello", domain.Config{Variant: domain.VariantGated})
	require.NoError(t, err)

	assert.Equal(t, []string{domain.DecisionToolName}, gateTools)
	assert.Equal(t, []string{"calculator"}, actTools)
}
