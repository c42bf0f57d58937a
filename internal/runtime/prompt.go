package runtime

import (
	"strings"

	"github.com/superego-agent/gateflow/pkg/domain"
)

// DefaultInstructions is the fixed operating preamble of the policy stage.
// Callers can replace it with WithInstructions; the constitution and
// adherence directives are always appended per call.
const DefaultInstructions = `You are a screening agent. Evaluate the latest user message against the
constitution below and render your verdict by calling the superego_decision
tool with allow=true or allow=false, optionally including a short message
explaining the decision. Do not answer the user's request yourself.`

// noConstitutionPlaceholder is appended when no policy text is supplied, so
// the policy model sees an explicit statement rather than an absent section.
const noConstitutionPlaceholder = "## Constitution\nNo specific constitution provided for this run."

// PolicyPrompt assembles the policy-stage system prompt: operating
// instructions, then the active constitution (or an explicit placeholder),
// then adherence directives when present, blank-line separated.
func PolicyPrompt(instructions string, cfg domain.Config) string {
	parts := []string{instructions}

	if cfg.Constitution != "" {
		parts = append(parts, cfg.Constitution)
	} else {
		parts = append(parts, noConstitutionPlaceholder)
	}

	if cfg.AdherenceText != "" {
		parts = append(parts, cfg.AdherenceText)
	}

	return strings.Join(parts, "\n\n")
}
