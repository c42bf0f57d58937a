package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter  EventType = "node_enter"
	EventNodeLeave  EventType = "node_leave"
	EventToolCall   EventType = "tool_call"
	EventToolReturn EventType = "tool_return"
	EventDecision   EventType = "decision"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// NodeEvent represents entry into or exit from a workflow node.
type NodeEvent struct {
	EventBase
	Node    Node    `json:"node"`
	Variant Variant `json:"variant"`
}

// ToolEvent represents a tool execution.
type ToolEvent struct {
	EventBase
	Node     Node   `json:"node"`
	ToolName string `json:"tool_name"`
	CallID   string `json:"call_id"`
	Input    any    `json:"input,omitempty"`
	Output   any    `json:"output,omitempty"`
	IsError  bool   `json:"is_error,omitempty"`
}

// DecisionEvent represents a verdict rendered by the decision tool,
// including the fail-closed malformed case.
type DecisionEvent struct {
	EventBase
	Decision Decision `json:"decision"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter  func(context.Context, *NodeEvent)
	OnNodeLeave  func(context.Context, *NodeEvent)
	OnToolCall   func(context.Context, *ToolEvent)
	OnToolReturn func(context.Context, *ToolEvent)
	OnDecision   func(context.Context, *DecisionEvent)
}
