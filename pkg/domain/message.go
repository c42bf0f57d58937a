package domain

// Role identifies which stage of the workflow authored a message.
type Role string

const (
	// RoleUser is a message supplied by the caller.
	RoleUser Role = "user"
	// RolePolicy is a message produced by the policy ("superego") stage.
	RolePolicy Role = "policy"
	// RoleResponse is a message produced by the response ("inner agent") stage.
	RoleResponse Role = "response"
	// RoleTool is the resolved result of a previously requested tool call.
	RoleTool Role = "tool"
)

// ToolCall represents a request embedded in a model message to execute a tool.
// Ideally compatible with OpenAI/MCP tool call schemas.
type ToolCall struct {
	ID   string         `json:"id" yaml:"id" mapstructure:"id"`                           // Unique ID correlating the eventual ToolResult
	Name string         `json:"name" yaml:"name" mapstructure:"name"`                     // Registered tool name
	Args map[string]any `json:"args,omitempty" yaml:"args,omitempty" mapstructure:"args"` // Arguments for the tool
}

// ToolResult represents the outcome of executing a single ToolCall.
type ToolResult struct {
	ID      string `json:"id"` // Must match the ToolCall.ID
	Name    string `json:"name"`
	Content string `json:"content,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}

// Message is one entry in a session transcript. Messages are immutable once
// appended; ordering is the sole sequencing mechanism.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`

	// Name labels the producing stage or tool (e.g. "superego").
	Name string `json:"name,omitempty"`

	// ToolCalls holds tool invocations requested by a policy or response message.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID correlates a RoleTool message back to the request it resolves.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// OriginTool is the name of the tool that produced a RoleTool message.
	OriginTool string `json:"origin_tool,omitempty"`
}

// HasToolCalls reports whether the message requests any tool invocations.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// Clone returns a deep copy of the message so callers cannot alias
// engine-owned state through the ToolCalls slice or Args maps.
func (m Message) Clone() Message {
	out := m
	if len(m.ToolCalls) > 0 {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			out.ToolCalls[i] = tc.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the tool call.
func (tc ToolCall) Clone() ToolCall {
	out := tc
	if tc.Args != nil {
		out.Args = make(map[string]any, len(tc.Args))
		for k, v := range tc.Args {
			out.Args[k] = v
		}
	}
	return out
}

// CloneMessages returns deep copies of all messages.
func CloneMessages(in []Message) []Message {
	if in == nil {
		return nil
	}
	out := make([]Message, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
