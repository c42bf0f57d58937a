package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/superego-agent/gateflow"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of gateflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gateflow version %s\n", gateflow.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
