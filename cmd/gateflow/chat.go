package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/superego-agent/gateflow"
	"github.com/superego-agent/gateflow/internal/presentation/tui"
	"github.com/superego-agent/gateflow/pkg/domain"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive screened conversation",
	Long: `Opens a REPL against the configured model endpoint. Each message is
screened by the policy stage before the response stage may answer. Use
--session to resume an existing session.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}

		logger := newLogger(cfg)
		engine, cleanup, err := newEngine(cfg, logger)
		if err != nil {
			fmt.Printf("Error initializing gateflow: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		runCfg, err := workflowConfig(cfg)
		if err != nil {
			fmt.Printf("Error loading constitution: %v\n", err)
			os.Exit(1)
		}

		sessionID, _ := cmd.Flags().GetString("session")
		if sessionID == "" {
			sessionID = "chat_" + ulid.Make().String()
		}

		tui.PrintBanner(gateflow.Version)
		fmt.Printf("Session: %s (variant: %s). Type 'exit' to quit.\n\n", sessionID, runCfg.Variant)

		reader := bufio.NewReader(os.Stdin)
		for {
			fmt.Print("> ")
			text, err := reader.ReadString('\n')
			if err != nil {
				break
			}
			input := strings.TrimSpace(text)
			if input == "" {
				continue
			}
			if input == "exit" || input == "quit" {
				fmt.Println("Bye!")
				break
			}

			before, err := engine.Transcript(cmd.Context(), sessionID)
			if err != nil && len(before) == 0 {
				before = nil
			}

			transcript, err := engine.Advance(cmd.Context(), sessionID, input, runCfg)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}

			// Only render what this turn added.
			turn := transcript
			if len(before) > 0 && len(transcript) > len(before) {
				turn = transcript[len(before):]
			}
			fmt.Print(tui.RenderTranscript(filterRole(turn, domain.RoleUser)))
		}
	},
}

// filterRole drops messages with the given role; the REPL already echoed them.
func filterRole(messages []domain.Message, role domain.Role) []domain.Message {
	out := make([]domain.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role != role {
			out = append(out, m)
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("session", "", "Session ID to resume (default: a fresh ULID)")
}
