package domain

// Node identifies a position in the workflow graph.
type Node string

const (
	// NodeGate runs the policy model against the active constitution.
	NodeGate Node = "gate"
	// NodeAct runs the response model.
	NodeAct Node = "act"
	// NodeInvoke resolves pending tool calls through the registry.
	NodeInvoke Node = "invoke"
	// NodeTerminal is the absorbing end state of a run.
	NodeTerminal Node = "terminal"
)

// Variant names a composition of nodes over the same graph infrastructure.
type Variant string

const (
	// VariantGated routes every user message through the policy stage first.
	VariantGated Variant = "gated"
	// VariantUngated skips the policy stage entirely.
	VariantUngated Variant = "ungated"
)

// Entry returns the entry node for the variant.
func (v Variant) Entry() Node {
	if v == VariantUngated {
		return NodeAct
	}
	return NodeGate
}

// Valid reports whether the variant is one of the known compositions.
func (v Variant) Valid() bool {
	return v == VariantGated || v == VariantUngated
}

// Session is the checkpointed snapshot of one conversation: the ordered
// transcript plus the workflow position. It round-trips losslessly through
// JSON, which is the persisted checkpoint layout.
type Session struct {
	// ID is the opaque session identifier chosen by the caller.
	ID string `json:"session_id"`

	// Messages is the ordered transcript. Owned exclusively by this session.
	Messages []Message `json:"messages"`

	// CurrentNode is the workflow position of the last committed step.
	CurrentNode Node `json:"current_node"`

	// Variant records which composition this session runs.
	Variant Variant `json:"variant"`
}

// NewSession creates a fresh session positioned at the variant's entry node.
func NewSession(id string, variant Variant) *Session {
	return &Session{
		ID:          id,
		Messages:    []Message{},
		CurrentNode: variant.Entry(),
		Variant:     variant,
	}
}

// Append adds a message to the transcript.
func (s *Session) Append(msg Message) {
	s.Messages = append(s.Messages, msg)
}

// Last returns the most recent message, or a zero Message if the transcript
// is empty (ok reports which).
func (s *Session) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Snapshot returns a deep copy suitable for handing across the store boundary.
func (s *Session) Snapshot() *Session {
	out := *s
	out.Messages = CloneMessages(s.Messages)
	return &out
}

// Config is the per-advance configuration bundle. It is supplied by the
// caller on every call and is not part of session identity, though callers
// should keep it stable for the lifetime of a session.
type Config struct {
	// Constitution is the active policy text. Empty means "no policy
	// constraints" and is rendered as an explicit placeholder in the
	// policy prompt.
	Constitution string `json:"constitution,omitempty"`

	// AdherenceText holds optional adherence-level directives appended to
	// the policy prompt.
	AdherenceText string `json:"adherence_text,omitempty"`

	// Variant selects the workflow composition.
	Variant Variant `json:"variant"`
}
