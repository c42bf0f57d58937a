package domain

import "strings"

// Decision is the typed verdict parsed from a decision-tool result.
type Decision int

const (
	// DecisionMalformed means neither (or both) markers were recognizable.
	// The engine treats this as deny (fail-closed).
	DecisionMalformed Decision = iota
	// DecisionAllow permits the response stage to run.
	DecisionAllow
	// DecisionDeny ends the run without a response-stage message.
	DecisionDeny
)

// Marker strings are the externally observable contract of the decision
// tool. Free text around them carries no meaning for routing.
const (
	MarkerAllowed = "Superego allowed the prompt"
	MarkerBlocked = "Superego blocked the prompt"
)

// DecisionToolName is the registered name of the decision tool.
const DecisionToolName = "superego_decision"

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionDeny:
		return "deny"
	default:
		return "malformed"
	}
}

// ParseDecision extracts the typed verdict from decision-tool result text.
// Exactly one marker must be present; anything else is malformed.
func ParseDecision(content string) Decision {
	allowed := strings.Contains(content, MarkerAllowed)
	blocked := strings.Contains(content, MarkerBlocked)
	switch {
	case allowed && !blocked:
		return DecisionAllow
	case blocked && !allowed:
		return DecisionDeny
	default:
		return DecisionMalformed
	}
}
