package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gateflow",
	Short: "Gateflow runs screened conversation workflows",
	Long: `Gateflow drives a two-stage conversation workflow: a policy stage screens
each user message against a constitution before a response stage may act.
Sessions are checkpointed after every transition, so interrupted runs resume
where they left off.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to a gateflow config file (YAML)")
}
