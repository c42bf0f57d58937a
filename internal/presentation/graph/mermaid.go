// Package graph renders the workflow topology as Mermaid flowchart syntax.
package graph

import (
	"fmt"
	"strings"

	"github.com/superego-agent/gateflow/pkg/domain"
)

// Overlay contains dynamic session state to visualize on the graph.
type Overlay struct {
	CurrentNode domain.Node
}

// GenerateMermaid produces a Mermaid flowchart for the given workflow variant.
// Node shapes carry semantics:
//   - gate: [/Parallelogram/] (screening decision)
//   - invoke: [[Subroutine]] (tool execution)
//   - act: [Rectangle]
//   - terminal: ((Circle))
//
// It also highlights the session's current node if an overlay is provided.
func GenerateMermaid(variant domain.Variant, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	writeNode := func(node domain.Node) {
		opener, closer := "[", "]"
		switch node {
		case domain.NodeGate:
			opener, closer = "[/", "/]"
		case domain.NodeInvoke:
			opener, closer = "[[", "]]"
		case domain.NodeTerminal:
			opener, closer = "((", "))"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", node, opener, node, closer))
	}

	if variant == domain.VariantGated {
		writeNode(domain.NodeGate)
	}
	writeNode(domain.NodeAct)
	writeNode(domain.NodeInvoke)
	writeNode(domain.NodeTerminal)

	if variant == domain.VariantGated {
		sb.WriteString("    gate -- \"tool calls\" --> invoke\n")
		sb.WriteString("    gate -- \"no decision\" --> act\n")
		sb.WriteString("    invoke -- \"allowed\" --> act\n")
		sb.WriteString("    invoke -- \"blocked\" --> terminal\n")
	} else {
		sb.WriteString("    invoke --> act\n")
	}
	sb.WriteString("    act -- \"tool calls\" --> invoke\n")
	sb.WriteString("    act --> terminal\n")

	if overlay != nil && overlay.CurrentNode != "" {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text for high-contrast on light backgrounds
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString(fmt.Sprintf("    class %s current;\n", overlay.CurrentNode))
	}

	return sb.String()
}
