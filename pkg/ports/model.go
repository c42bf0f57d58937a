package ports

import (
	"context"

	"github.com/superego-agent/gateflow/pkg/domain"
)

// ToolSpec describes a tool offered to a model so it can emit tool calls.
// Parameters is a JSON Schema object.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ModelRequest is the input to a single model invocation: the system
// instructions, the transcript so far, and the tools bound to this stage.
type ModelRequest struct {
	System   string
	Messages []domain.Message
	Tools    []ToolSpec
}

// ModelClient is the invocation boundary for a language model. The engine is
// agnostic to model identity, streaming, or provider; it only consumes a
// completed message (text plus zero-or-more tool calls).
type ModelClient interface {
	Invoke(ctx context.Context, req ModelRequest) (domain.Message, error)
}

// ModelFunc adapts a plain function to the ModelClient interface.
type ModelFunc func(ctx context.Context, req ModelRequest) (domain.Message, error)

// Invoke implements ModelClient.
func (f ModelFunc) Invoke(ctx context.Context, req ModelRequest) (domain.Message, error) {
	return f(ctx, req)
}
