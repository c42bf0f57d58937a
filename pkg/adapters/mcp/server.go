// Package mcp exposes a gateflow engine as a Model Context Protocol server.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/superego-agent/gateflow"
	"github.com/superego-agent/gateflow/pkg/domain"
)

// AdvanceResponse provides a unified structure across adapters.
type AdvanceResponse struct {
	SessionID string           `json:"session_id" jsonschema_description:"Identifier of the conversation session"`
	Messages  []domain.Message `json:"messages" jsonschema_description:"Messages produced by the turn"`
}

// Engine defines the interface required by the MCP server.
type Engine interface {
	Advance(ctx context.Context, sessionID string, message string, cfg domain.Config) ([]domain.Message, error)
	Transcript(ctx context.Context, sessionID string) ([]domain.Message, error)
	Forget(ctx context.Context, sessionID string) error
	Sessions(ctx context.Context) ([]string, error)
}

// Server wraps a gateflow Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("gateflow-mcp", gateflow.Version),
	}
	s.registerTools()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)

	go func() {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		fmt.Println("\nShutdown signal received, shutting down server...")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("CORS Middleware", "method", r.Method, "path", r.URL.Path)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: advance
	advanceTool := mcp.NewTool("advance",
		mcp.WithDescription("Send a user message to a session and run it until the turn settles."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Conversation session identifier")),
		mcp.WithString("message", mcp.Required(), mcp.Description("User message text")),
		mcp.WithString("constitution", mcp.Description("Constitution text the policy stage screens against (optional)")),
		mcp.WithString("adherence", mcp.Description("Extra adherence instructions for the policy stage (optional)")),
		mcp.WithString("variant", mcp.Description("Workflow variant: 'gated' (default) or 'ungated'")),
		mcp.WithOutputSchema[AdvanceResponse](),
	)
	s.mcpServer.AddTool(advanceTool, mcp.NewStructuredToolHandler(s.handleAdvance))

	// TOOL: get_transcript
	transcriptTool := mcp.NewTool("get_transcript",
		mcp.WithDescription("Fetch the full message history of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Conversation session identifier")),
		mcp.WithOutputSchema[AdvanceResponse](),
	)
	s.mcpServer.AddTool(transcriptTool, mcp.NewStructuredToolHandler(s.handleTranscript))

	// TOOL: forget_session
	s.mcpServer.AddTool(mcp.NewTool("forget_session",
		mcp.WithDescription("Delete a session and its checkpoint."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Conversation session identifier")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := request.GetString("session_id", "")
		if sessionID == "" {
			return mcp.NewToolResultError("session_id is required"), nil
		}
		if err := s.engine.Forget(ctx, sessionID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("forget failed: %v", err)), nil
		}
		return mcp.NewToolResultText("deleted"), nil
	})

	// TOOL: list_sessions
	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List the identifiers of all known sessions."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := s.engine.Sessions(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		return mcp.NewToolResultText(strings.Join(ids, "\n")), nil
	})
}

// Handler methods for structured tools

func (s *Server) handleAdvance(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (AdvanceResponse, error) {
	sessionID, _ := args["session_id"].(string)
	message, _ := args["message"].(string)
	if sessionID == "" || message == "" {
		return AdvanceResponse{}, fmt.Errorf("session_id and message are required")
	}

	cfg := domain.Config{Variant: domain.VariantGated}
	if v, ok := args["constitution"].(string); ok {
		cfg.Constitution = v
	}
	if v, ok := args["adherence"].(string); ok {
		cfg.AdherenceText = v
	}
	if v, ok := args["variant"].(string); ok && v != "" {
		cfg.Variant = domain.Variant(v)
	}

	messages, err := s.engine.Advance(ctx, sessionID, message, cfg)
	if err != nil {
		return AdvanceResponse{}, fmt.Errorf("advance failed: %w", err)
	}

	return AdvanceResponse{SessionID: sessionID, Messages: messages}, nil
}

func (s *Server) handleTranscript(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (AdvanceResponse, error) {
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		return AdvanceResponse{}, fmt.Errorf("session_id is required")
	}

	messages, err := s.engine.Transcript(ctx, sessionID)
	if err != nil {
		return AdvanceResponse{}, fmt.Errorf("transcript failed: %w", err)
	}

	return AdvanceResponse{SessionID: sessionID, Messages: messages}, nil
}
