package gateflow

import (
	"context"
	"io"
	"log/slog"

	"github.com/superego-agent/gateflow/internal/runtime"
	"github.com/superego-agent/gateflow/pkg/adapters/memory"
	"github.com/superego-agent/gateflow/pkg/domain"
	"github.com/superego-agent/gateflow/pkg/ports"
	"github.com/superego-agent/gateflow/pkg/registry"
	"github.com/superego-agent/gateflow/pkg/session"
)

// Engine is the high-level entry point for the Gateflow library.
// It wraps the internal runtime and the session manager, providing a
// per-session-serialized Advance API for consumers.
type Engine struct {
	runtime  *runtime.Engine
	sessions *session.Manager
	registry *registry.Registry

	store       ports.CheckpointStore
	locker      ports.DistributedLocker
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	runtimeOpts []runtime.EngineOption
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithCheckpointStore injects a durable store; defaults to in-memory.
func WithCheckpointStore(store ports.CheckpointStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker enables distributed per-session locking across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithRegistry replaces the default tool registry (decision + calculator).
func WithRegistry(reg *registry.Registry) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithInstructions overrides the policy stage's fixed operating instructions.
func WithInstructions(text string) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithInstructions(text))
	}
}

// WithStrictGate makes a gated run fail closed when the policy stage
// answers without calling the decision tool. The default mirrors the
// historical behavior: pass-through is an implicit allow.
func WithStrictGate() Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithStrictGate())
	}
}

// WithMaxSteps overrides the per-advance step budget.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxSteps(n))
	}
}

// New initializes a new Gateflow Engine around the two model clients: the
// policy ("superego") model and the response ("inner agent") model.
func New(policy, response ports.ModelClient, opts ...Option) (*Engine, error) {
	eng := &Engine{}

	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	if eng.store == nil {
		eng.store = memory.NewStore()
	}

	if eng.registry == nil {
		eng.registry = registry.New()
		if err := eng.registry.Register(registry.NewDecisionTool()); err != nil {
			return nil, err
		}
		if err := eng.registry.Register(registry.NewCalculatorTool()); err != nil {
			return nil, err
		}
	}

	sessionOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker))
	}
	eng.sessions = session.NewManager(eng.store, sessionOpts...)

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLogger(eng.logger),
		runtime.WithLifecycleHooks(eng.hooks),
	}
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)

	eng.runtime = runtime.NewEngine(eng.store, eng.registry, policy, response, runtimeOpts...)

	return eng, nil
}

// Advance appends the user message to the session and drives the selected
// workflow variant to its terminal state, returning the full transcript.
//
// Calls for the same session ID are strictly serialized; calls for distinct
// sessions proceed in parallel. On failure the checkpoint store retains the
// last committed state and retrying with the same inputs resumes from it.
func (e *Engine) Advance(ctx context.Context, sessionID string, message string, cfg domain.Config) ([]domain.Message, error) {
	var messages []domain.Message
	err := e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		messages, err = e.runtime.Advance(ctx, sessionID, message, cfg)
		return err
	})
	return messages, err
}

// Transcript returns the committed message sequence for a session.
func (e *Engine) Transcript(ctx context.Context, sessionID string) ([]domain.Message, error) {
	session, err := e.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.Messages, nil
}

// Forget removes a session's checkpoint. Retention policy belongs to the
// caller; the engine itself never deletes sessions.
func (e *Engine) Forget(ctx context.Context, sessionID string) error {
	return e.sessions.Delete(ctx, sessionID)
}

// Sessions returns the IDs of all checkpointed sessions.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Registry returns the tool registry so hosts can register custom tools.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}
