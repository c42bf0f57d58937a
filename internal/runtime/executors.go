package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/superego-agent/gateflow/pkg/domain"
	"github.com/superego-agent/gateflow/pkg/ports"
)

// policyStageName labels messages produced by the gate node.
const policyStageName = "superego"

// runGate invokes the policy model with the assembled policy prompt and the
// full session history, then routes on whether it called a tool.
func (e *Engine) runGate(ctx context.Context, session *domain.Session, cfg domain.Config, logger *slog.Logger) (domain.Node, error) {
	req := ports.ModelRequest{
		System:   PolicyPrompt(e.instructions, cfg),
		Messages: domain.CloneMessages(session.Messages),
		Tools:    e.registry.Specs(domain.DecisionToolName),
	}

	msg, err := e.policy.Invoke(ctx, req)
	if err != nil {
		return session.CurrentNode, fmt.Errorf("policy model: %w", err)
	}

	msg.Role = domain.RolePolicy
	msg.Name = policyStageName
	ensureCallIDs(&msg)
	session.Append(msg)

	if msg.HasToolCalls() {
		return domain.NodeInvoke, nil
	}

	// The policy stage answered without rendering a verdict. Historically
	// this passes through as an implicit allow; WithStrictGate fails closed.
	if e.strictGate {
		logger.Warn("policy stage made no tool call; strict gate terminating run")
		e.fireDecision(ctx, session, domain.DecisionDeny)
		return domain.NodeTerminal, nil
	}
	logger.Debug("policy stage made no tool call; proceeding to response stage")
	return domain.NodeAct, nil
}

// runAct invokes the response model with the bare session history.
func (e *Engine) runAct(ctx context.Context, session *domain.Session) (domain.Node, error) {
	req := ports.ModelRequest{
		Messages: domain.CloneMessages(session.Messages),
		Tools:    e.registry.SpecsExcluding(domain.DecisionToolName),
	}

	msg, err := e.response.Invoke(ctx, req)
	if err != nil {
		return session.CurrentNode, fmt.Errorf("response model: %w", err)
	}

	msg.Role = domain.RoleResponse
	ensureCallIDs(&msg)
	session.Append(msg)

	if msg.HasToolCalls() {
		return domain.NodeInvoke, nil
	}
	return domain.NodeTerminal, nil
}

// runInvoke resolves every tool call of the most recent message, appending
// one tool-result message per request in request order, then applies the
// decision routing when the last resolved call was the decision tool.
func (e *Engine) runInvoke(ctx context.Context, session *domain.Session, logger *slog.Logger) (domain.Node, error) {
	last, ok := session.Last()
	if !ok || !last.HasToolCalls() {
		return session.CurrentNode, fmt.Errorf("invoke node reached with no pending tool calls")
	}

	var final domain.ToolResult
	for _, call := range last.ToolCalls {
		if err := ctx.Err(); err != nil {
			return session.CurrentNode, err
		}

		e.fireToolCall(ctx, session, call)
		result := e.registry.Invoke(ctx, call)
		e.fireToolReturn(ctx, session, call, result)

		session.Append(domain.Message{
			Role:       domain.RoleTool,
			Content:    result.Content,
			Name:       result.Name,
			ToolCallID: result.ID,
			OriginTool: result.Name,
		})
		final = result
	}

	// The ungated variant has no decision-tool semantics: tool results
	// always feed back into the response stage.
	if session.Variant == domain.VariantUngated {
		return domain.NodeAct, nil
	}

	if final.Name != domain.DecisionToolName {
		return domain.NodeAct, nil
	}

	decision := domain.ParseDecision(final.Content)
	e.fireDecision(ctx, session, decision)
	switch decision {
	case domain.DecisionAllow:
		return domain.NodeAct, nil
	case domain.DecisionDeny:
		return domain.NodeTerminal, nil
	default:
		// Fail closed, never silently default to allow.
		logger.Warn("decision tool returned unrecognizable content; terminating run",
			"call_id", final.ID,
		)
		return domain.NodeTerminal, nil
	}
}

// ensureCallIDs mints correlation IDs for tool calls the model omitted one for.
func ensureCallIDs(msg *domain.Message) {
	for i := range msg.ToolCalls {
		if msg.ToolCalls[i].ID == "" {
			msg.ToolCalls[i].ID = "call_" + ulid.Make().String()
		}
	}
}

func (e *Engine) fireToolCall(ctx context.Context, session *domain.Session, call domain.ToolCall) {
	if e.hooks.OnToolCall == nil {
		return
	}
	e.hooks.OnToolCall(ctx, &domain.ToolEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventToolCall, SessionID: session.ID},
		Node:      session.CurrentNode,
		ToolName:  call.Name,
		CallID:    call.ID,
		Input:     call.Args,
	})
}

func (e *Engine) fireToolReturn(ctx context.Context, session *domain.Session, call domain.ToolCall, result domain.ToolResult) {
	if e.hooks.OnToolReturn == nil {
		return
	}
	e.hooks.OnToolReturn(ctx, &domain.ToolEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventToolReturn, SessionID: session.ID},
		Node:      session.CurrentNode,
		ToolName:  call.Name,
		CallID:    call.ID,
		Output:    result.Content,
		IsError:   result.IsError,
	})
}
