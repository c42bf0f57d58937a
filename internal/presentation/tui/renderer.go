package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"

	"github.com/superego-agent/gateflow/pkg/domain"
)

// NewRenderer returns a function that renders markdown using glamour.
// It uses a dark theme by default, but could be configurable.
func NewRenderer() func(string) (string, error) {
	// Initialize renderer with standard dark style
	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	)

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// RenderTranscript formats a slice of messages for terminal display.
// Response content is rendered as markdown; other roles get a colored label.
func RenderTranscript(messages []domain.Message) string {
	render := NewRenderer()
	p := termenv.ColorProfile()

	var sb strings.Builder
	for _, m := range messages {
		switch m.Role {
		case domain.RoleUser:
			label := termenv.String("you").Foreground(p.Color("#818cf8")).Bold()
			sb.WriteString(fmt.Sprintf("%s: %s\n", label, m.Content))
		case domain.RolePolicy:
			label := termenv.String("screening").Foreground(p.Color("#fbbf24"))
			if m.Content != "" {
				sb.WriteString(fmt.Sprintf("%s: %s\n", label, m.Content))
			}
			for _, tc := range m.ToolCalls {
				sb.WriteString(fmt.Sprintf("%s: → %s\n", label, tc.Name))
			}
		case domain.RoleTool:
			label := termenv.String(m.OriginTool).Foreground(p.Color("#34d399"))
			sb.WriteString(fmt.Sprintf("%s: %s\n", label, m.Content))
		case domain.RoleResponse:
			if out, err := render(m.Content); err == nil {
				sb.WriteString(out)
			} else {
				sb.WriteString(m.Content + "\n")
			}
			for _, tc := range m.ToolCalls {
				label := termenv.String("agent").Foreground(p.Color("#c084fc"))
				sb.WriteString(fmt.Sprintf("%s: → %s\n", label, tc.Name))
			}
		}
	}
	return sb.String()
}
