package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superego-agent/gateflow/pkg/domain"
)

func TestRegister_Validation(t *testing.T) {
	r := New()

	err := r.Register(Tool{Name: "", Handler: func(ctx context.Context, args map[string]any) (string, error) { return "", nil }})
	assert.Error(t, err, "empty name should be rejected")

	err = r.Register(Tool{Name: "no-handler"})
	assert.Error(t, err, "missing handler should be rejected")
}

func TestInvoke_UnknownTool(t *testing.T) {
	r := New()

	result := r.Invoke(context.Background(), domain.ToolCall{ID: "call_1", Name: "ghost"})
	assert.True(t, result.IsError)
	assert.Equal(t, "call_1", result.ID)
	assert.Equal(t, "ghost", result.Name)
	assert.Contains(t, result.Content, "tool not found")
}

func TestInvoke_SchemaValidation(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(NewCalculatorTool()))

	// Missing the required "expression" argument.
	result := r.Invoke(context.Background(), domain.ToolCall{
		ID:   "call_1",
		Name: "calculator",
		Args: map[string]any{},
	})
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "invalid arguments")
}

func TestInvoke_HandlerError(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Tool{
		Name: "broken",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "", errors.New("boom")
		},
	}))

	result := r.Invoke(context.Background(), domain.ToolCall{ID: "call_1", Name: "broken"})
	assert.True(t, result.IsError)
	assert.Equal(t, "boom", result.Content)
}

func TestInvoke_HandlerPanic(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Tool{
		Name: "panicky",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			panic("unexpected")
		},
	}))

	result := r.Invoke(context.Background(), domain.ToolCall{ID: "call_1", Name: "panicky"})
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "panicked")
}

func TestSpecs(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(NewDecisionTool()))
	require.NoError(t, r.Register(NewCalculatorTool()))

	all := r.Specs()
	assert.Len(t, all, 2)

	only := r.Specs(domain.DecisionToolName)
	require.Len(t, only, 1)
	assert.Equal(t, domain.DecisionToolName, only[0].Name)
	assert.NotNil(t, only[0].Parameters)

	none := r.Specs("ghost")
	assert.Empty(t, none)
}
