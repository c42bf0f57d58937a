package registry

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/mitchellh/mapstructure"

	"github.com/superego-agent/gateflow/pkg/domain"
)

// decisionArgs is the typed argument payload of the decision tool.
type decisionArgs struct {
	Allow   bool   `mapstructure:"allow"`
	Message string `mapstructure:"message"`
}

// calculatorArgs is the typed argument payload of the calculator tool.
type calculatorArgs struct {
	Expression string `mapstructure:"expression"`
}

// NewDecisionTool returns the tool a policy model uses to render its
// allow/deny verdict. The result text carries exactly one of the two fixed
// markers; the engine relies on nothing else in it.
func NewDecisionTool() Tool {
	return Tool{
		Name:        domain.DecisionToolName,
		Description: "Make a decision on whether to allow or block the input.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"allow": map[string]any{
					"type":        "boolean",
					"description": "Whether to allow the input",
				},
				"message": map[string]any{
					"type":        "string",
					"description": "Optional message explaining the decision",
				},
			},
			"required": []any{"allow"},
		},
		Handler: func(ctx context.Context, raw map[string]any) (string, error) {
			var args decisionArgs
			if err := mapstructure.Decode(raw, &args); err != nil {
				return "", fmt.Errorf("decode decision args: %w", err)
			}

			text := "❌ " + domain.MarkerBlocked + "."
			if args.Allow {
				text = "✅ " + domain.MarkerAllowed + "."
			}
			if args.Message != "" {
				text += "\n\n" + args.Message
			}
			return text, nil
		},
	}
}

// NewCalculatorTool returns an arithmetic evaluation tool. It exists to
// demonstrate the general registry contract: arbitrary tools are permitted
// provided they return terminal, non-interactive results within the
// current step.
func NewCalculatorTool() Tool {
	return Tool{
		Name:        "calculator",
		Description: "Evaluate a mathematical expression and return the result.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"expression": map[string]any{
					"type":        "string",
					"description": "The expression to evaluate, e.g. \"2+2\"",
				},
			},
			"required": []any{"expression"},
		},
		Handler: func(ctx context.Context, raw map[string]any) (string, error) {
			var args calculatorArgs
			if err := mapstructure.Decode(raw, &args); err != nil {
				return "", fmt.Errorf("decode calculator args: %w", err)
			}

			program, err := expr.Compile(args.Expression)
			if err != nil {
				return "", fmt.Errorf("invalid expression: %w", err)
			}
			out, err := expr.Run(program, nil)
			if err != nil {
				return "", fmt.Errorf("evaluation failed: %w", err)
			}
			return fmt.Sprintf("%v", out), nil
		},
	}
}
