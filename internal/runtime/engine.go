// Package runtime implements the gated conversation state machine: the node
// set, the transition function, and the run loop that drives a session to a
// terminal state while committing a checkpoint after every node execution.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/superego-agent/gateflow/internal/logging"
	"github.com/superego-agent/gateflow/pkg/domain"
	"github.com/superego-agent/gateflow/pkg/ports"
	"github.com/superego-agent/gateflow/pkg/registry"
)

// DefaultMaxSteps bounds a single advance call. A run that ping-pongs
// between act and invoke longer than this is aborted with ErrStepLimit.
const DefaultMaxSteps = 32

// Engine is the core state machine runner. It is not safe for concurrent
// advance calls on the same session ID; the session manager provides that
// serialization on top.
type Engine struct {
	store    ports.CheckpointStore
	registry *registry.Registry
	policy   ports.ModelClient
	response ports.ModelClient

	instructions string
	strictGate   bool
	maxSteps     int

	hooks  domain.LifecycleHooks
	logger *slog.Logger
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a structured logger for the engine.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithInstructions overrides the fixed operating instructions prepended to
// every policy-stage prompt.
func WithInstructions(text string) EngineOption {
	return func(e *Engine) {
		if text != "" {
			e.instructions = text
		}
	}
}

// WithStrictGate terminates a gated run when the policy stage answers
// without calling the decision tool. The default preserves the original
// behavior: a pass-through is treated as an implicit allow and logged.
func WithStrictGate() EngineOption {
	return func(e *Engine) {
		e.strictGate = true
	}
}

// WithMaxSteps overrides the per-advance step budget.
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// NewEngine creates a new engine with its collaborators.
func NewEngine(store ports.CheckpointStore, reg *registry.Registry, policy, response ports.ModelClient, opts ...EngineOption) *Engine {
	e := &Engine{
		store:        store,
		registry:     reg,
		policy:       policy,
		response:     response,
		instructions: DefaultInstructions,
		maxSteps:     DefaultMaxSteps,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Advance appends a user message to the session, runs the configured
// variant to its terminal state, and returns the full transcript as held by
// the checkpoint store after the call settles.
//
// Every node execution commits its own checkpoint, so a failure (or caller
// cancellation) between steps loses at most the in-flight step. Retrying
// with the same inputs resumes from the last committed node.
func (e *Engine) Advance(ctx context.Context, sessionID string, userMessage string, cfg domain.Config) ([]domain.Message, error) {
	if sessionID == "" {
		return nil, &domain.ConfigError{Field: "session_id", Reason: "must not be empty"}
	}
	if !cfg.Variant.Valid() {
		return nil, &domain.ConfigError{Field: "variant", Reason: fmt.Sprintf("unknown variant %q", cfg.Variant)}
	}
	userMessage, err := SanitizeInput(userMessage)
	if err != nil {
		return nil, &domain.ConfigError{Field: "message", Reason: err.Error()}
	}

	session, err := e.prepare(ctx, sessionID, userMessage, cfg)
	if err != nil {
		return nil, err
	}

	logger := e.logger.With("session_id", sessionID, "variant", session.Variant)

	for steps := 0; session.CurrentNode != domain.NodeTerminal; steps++ {
		if steps >= e.maxSteps {
			return nil, &domain.StepError{SessionID: sessionID, Node: session.CurrentNode, Err: domain.ErrStepLimit}
		}
		if err := ctx.Err(); err != nil {
			return nil, &domain.StepError{SessionID: sessionID, Node: session.CurrentNode, Err: err}
		}

		next, err := e.step(ctx, session, cfg, logger)
		if err != nil {
			return nil, &domain.StepError{SessionID: sessionID, Node: session.CurrentNode, Err: err}
		}

		// Commit the completed node execution before moving on. The store
		// must never observe a partially applied step.
		session.CurrentNode = next
		if err := e.store.Save(ctx, sessionID, session); err != nil {
			return nil, &domain.StepError{SessionID: sessionID, Node: session.CurrentNode, Err: fmt.Errorf("commit checkpoint: %w", err)}
		}
	}

	return domain.CloneMessages(session.Messages), nil
}

// prepare loads or creates the session and decides between starting a new
// turn and resuming one that failed mid-run.
func (e *Engine) prepare(ctx context.Context, sessionID, userMessage string, cfg domain.Config) (*domain.Session, error) {
	session, err := e.store.Load(ctx, sessionID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		session = domain.NewSession(sessionID, cfg.Variant)
	case err != nil:
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	if session.Variant != cfg.Variant {
		return nil, &domain.ConfigError{
			Field:  "variant",
			Reason: fmt.Sprintf("session %s runs variant %q, not %q", sessionID, session.Variant, cfg.Variant),
		}
	}

	// A non-terminal position means a previous advance was interrupted. If
	// the caller is retrying the same message, resume from the committed
	// node instead of appending a duplicate.
	if session.CurrentNode != domain.NodeTerminal && len(session.Messages) > 0 {
		if last := lastUserMessage(session); last == userMessage {
			return session, nil
		}
	}

	session.Append(domain.Message{Role: domain.RoleUser, Content: userMessage})
	session.CurrentNode = session.Variant.Entry()
	if err := e.store.Save(ctx, sessionID, session); err != nil {
		return nil, fmt.Errorf("commit checkpoint: %w", err)
	}
	return session, nil
}

// step executes the current node and returns the next one.
func (e *Engine) step(ctx context.Context, session *domain.Session, cfg domain.Config, logger *slog.Logger) (domain.Node, error) {
	node := session.CurrentNode
	e.fireNodeEnter(ctx, session, node)
	defer e.fireNodeLeave(ctx, session, node)

	switch node {
	case domain.NodeGate:
		return e.runGate(ctx, session, cfg, logger)
	case domain.NodeAct:
		return e.runAct(ctx, session)
	case domain.NodeInvoke:
		return e.runInvoke(ctx, session, logger)
	default:
		return domain.NodeTerminal, fmt.Errorf("unknown node %q", node)
	}
}

// lastUserMessage returns the content of the most recent user message.
func lastUserMessage(session *domain.Session) string {
	for i := len(session.Messages) - 1; i >= 0; i-- {
		if session.Messages[i].Role == domain.RoleUser {
			return session.Messages[i].Content
		}
	}
	return ""
}

func (e *Engine) fireNodeEnter(ctx context.Context, session *domain.Session, node domain.Node) {
	if e.hooks.OnNodeEnter == nil {
		return
	}
	e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventNodeEnter, SessionID: session.ID},
		Node:      node,
		Variant:   session.Variant,
	})
}

func (e *Engine) fireNodeLeave(ctx context.Context, session *domain.Session, node domain.Node) {
	if e.hooks.OnNodeLeave == nil {
		return
	}
	e.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventNodeLeave, SessionID: session.ID},
		Node:      node,
		Variant:   session.Variant,
	})
}

func (e *Engine) fireDecision(ctx context.Context, session *domain.Session, decision domain.Decision) {
	if e.hooks.OnDecision == nil {
		return
	}
	e.hooks.OnDecision(ctx, &domain.DecisionEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventDecision, SessionID: session.ID},
		Decision:  decision,
	})
}
