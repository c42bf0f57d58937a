package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDecision(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    Decision
	}{
		{"allow marker", "✅ Superego allowed the prompt.", DecisionAllow},
		{"allow with trailing message", "✅ Superego allowed the prompt.\n\nLooks fine.", DecisionAllow},
		{"deny marker", "❌ Superego blocked the prompt.", DecisionDeny},
		{"deny with reason", "❌ Superego blocked the prompt.\n\nblocked: unsafe", DecisionDeny},
		{"no marker", "some unrelated output", DecisionMalformed},
		{"empty", "", DecisionMalformed},
		{"both markers", "Superego allowed the prompt Superego blocked the prompt", DecisionMalformed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseDecision(tc.content))
		})
	}
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "allow", DecisionAllow.String())
	assert.Equal(t, "deny", DecisionDeny.String())
	assert.Equal(t, "malformed", DecisionMalformed.String())
}
