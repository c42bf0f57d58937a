package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/superego-agent/gateflow/internal/presentation/graph"
	"github.com/superego-agent/gateflow/pkg/domain"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the workflow graph visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) representing the workflow topology for a variant.`,
	Run: func(cmd *cobra.Command, args []string) {
		variant, _ := cmd.Flags().GetString("variant")
		v := domain.Variant(variant)
		if !v.Valid() {
			fmt.Printf("Unknown variant: %s. Supported: gated, ungated\n", variant)
			os.Exit(1)
		}

		fmt.Print(graph.GenerateMermaid(v, nil))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("variant", string(domain.VariantGated), "Workflow variant to diagram")
}
