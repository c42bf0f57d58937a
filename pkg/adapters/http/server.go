// Package http exposes a gateflow engine over a small JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/superego-agent/gateflow/pkg/domain"
)

// Engine is the subset of the gateflow facade the HTTP surface needs.
type Engine interface {
	Advance(ctx context.Context, sessionID string, message string, cfg domain.Config) ([]domain.Message, error)
	Transcript(ctx context.Context, sessionID string) ([]domain.Message, error)
	Forget(ctx context.Context, sessionID string) error
	Sessions(ctx context.Context) ([]string, error)
}

// Server handles the JSON API routes.
type Server struct {
	Engine Engine
}

// AdvanceRequest is the body for POST /sessions/{sessionID}/messages.
type AdvanceRequest struct {
	Message      string `json:"message"`
	Constitution string `json:"constitution,omitempty"`
	Adherence    string `json:"adherence,omitempty"`
	Variant      string `json:"variant,omitempty"`
}

// AdvanceResponse carries the messages produced by a single turn.
type AdvanceResponse struct {
	SessionID string           `json:"session_id"`
	Messages  []domain.Message `json:"messages"`
}

// TranscriptResponse carries the full history of a session.
type TranscriptResponse struct {
	SessionID string           `json:"session_id"`
	Messages  []domain.Message `json:"messages"`
}

// SessionsResponse lists the known session identifiers.
type SessionsResponse struct {
	Sessions []string `json:"sessions"`
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine) http.Handler {
	server := &Server{Engine: engine}
	r := chi.NewRouter()
	r.Use(enableCORS)

	r.Get("/healthz", server.GetHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/sessions", server.ListSessions)
	r.Post("/sessions/{sessionID}/messages", server.Advance)
	r.Get("/sessions/{sessionID}", server.GetTranscript)
	r.Delete("/sessions/{sessionID}", server.DeleteSession)

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /healthz request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Advance handles the POST /sessions/{sessionID}/messages request.
func (s *Server) Advance(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var body AdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.Message == "" {
		http.Error(w, "Field 'message' is required", http.StatusBadRequest)
		return
	}

	cfg := domain.Config{
		Constitution:  body.Constitution,
		AdherenceText: body.Adherence,
		Variant:       domain.Variant(body.Variant),
	}
	if cfg.Variant == "" {
		cfg.Variant = domain.VariantGated
	}

	messages, err := s.Engine.Advance(r.Context(), sessionID, body.Message, cfg)
	if err != nil {
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) {
			http.Error(w, cfgErr.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, fmt.Sprintf("Advance error: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, AdvanceResponse{SessionID: sessionID, Messages: messages})
}

// GetTranscript handles the GET /sessions/{sessionID} request.
func (s *Server) GetTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := s.Engine.Transcript(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Transcript error: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, TranscriptResponse{SessionID: sessionID, Messages: messages})
}

// DeleteSession handles the DELETE /sessions/{sessionID} request.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := s.Engine.Forget(r.Context(), sessionID); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Delete error: %v", err), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListSessions handles the GET /sessions request.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.Sessions(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("List error: %v", err), http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []string{}
	}

	writeJSON(w, http.StatusOK, SessionsResponse{Sessions: ids})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Printf("Response encode error: %v\n", err)
	}
}
