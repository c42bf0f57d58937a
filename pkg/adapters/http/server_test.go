package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superego-agent/gateflow/pkg/domain"
)

// MockEngine records calls and replays scripted results.
type MockEngine struct {
	advanceFn  func(ctx context.Context, sessionID, message string, cfg domain.Config) ([]domain.Message, error)
	transcript map[string][]domain.Message
	deleted    []string
	sessions   []string
}

func (m *MockEngine) Advance(ctx context.Context, sessionID string, message string, cfg domain.Config) ([]domain.Message, error) {
	return m.advanceFn(ctx, sessionID, message, cfg)
}

func (m *MockEngine) Transcript(ctx context.Context, sessionID string) ([]domain.Message, error) {
	msgs, ok := m.transcript[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return msgs, nil
}

func (m *MockEngine) Forget(ctx context.Context, sessionID string) error {
	if _, ok := m.transcript[sessionID]; !ok {
		return domain.ErrSessionNotFound
	}
	m.deleted = append(m.deleted, sessionID)
	return nil
}

func (m *MockEngine) Sessions(ctx context.Context) ([]string, error) {
	return m.sessions, nil
}

func TestGetHealth(t *testing.T) {
	handler := NewHandler(&MockEngine{})

	req, _ := http.NewRequest("GET", "/healthz", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	err := json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Equal(t, "ok", resp["status"])
}

func TestAdvance(t *testing.T) {
	var gotID, gotMessage string
	var gotCfg domain.Config
	engine := &MockEngine{
		advanceFn: func(ctx context.Context, sessionID, message string, cfg domain.Config) ([]domain.Message, error) {
			gotID, gotMessage, gotCfg = sessionID, message, cfg
			return []domain.Message{
				{Role: domain.RoleUser, Content: message},
				{Role: domain.RoleResponse, Content: "hello back"},
			}, nil
		},
	}
	handler := NewHandler(engine)

	body, _ := json.Marshal(AdvanceRequest{Message: "hello", Variant: "ungated"})
	req, _ := http.NewRequest("POST", "/sessions/s1/messages", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "s1", gotID)
	assert.Equal(t, "hello", gotMessage)
	assert.Equal(t, domain.VariantUngated, gotCfg.Variant)

	var resp AdvanceResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "s1", resp.SessionID)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "hello back", resp.Messages[1].Content)
}

func TestAdvanceDefaultsToGated(t *testing.T) {
	var gotCfg domain.Config
	engine := &MockEngine{
		advanceFn: func(ctx context.Context, sessionID, message string, cfg domain.Config) ([]domain.Message, error) {
			gotCfg = cfg
			return nil, nil
		},
	}
	handler := NewHandler(engine)

	body, _ := json.Marshal(AdvanceRequest{Message: "hi"})
	req, _ := http.NewRequest("POST", "/sessions/s1/messages", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.VariantGated, gotCfg.Variant)
}

func TestAdvanceRejectsEmptyMessage(t *testing.T) {
	handler := NewHandler(&MockEngine{})

	body, _ := json.Marshal(AdvanceRequest{})
	req, _ := http.NewRequest("POST", "/sessions/s1/messages", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdvanceConfigErrorIsBadRequest(t *testing.T) {
	engine := &MockEngine{
		advanceFn: func(ctx context.Context, sessionID, message string, cfg domain.Config) ([]domain.Message, error) {
			return nil, &domain.ConfigError{Field: "variant", Reason: "unknown variant"}
		},
	}
	handler := NewHandler(engine)

	body, _ := json.Marshal(AdvanceRequest{Message: "hi", Variant: "supervised"})
	req, _ := http.NewRequest("POST", "/sessions/s1/messages", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetTranscript(t *testing.T) {
	engine := &MockEngine{
		transcript: map[string][]domain.Message{
			"s1": {
				{Role: domain.RoleUser, Content: "hi"},
				{Role: domain.RoleResponse, Content: "hello"},
			},
		},
	}
	handler := NewHandler(engine)

	req, _ := http.NewRequest("GET", "/sessions/s1", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp TranscriptResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "s1", resp.SessionID)
	assert.Len(t, resp.Messages, 2)
}

func TestGetTranscriptNotFound(t *testing.T) {
	handler := NewHandler(&MockEngine{transcript: map[string][]domain.Message{}})

	req, _ := http.NewRequest("GET", "/sessions/missing", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteSession(t *testing.T) {
	engine := &MockEngine{
		transcript: map[string][]domain.Message{"s1": {}},
	}
	handler := NewHandler(engine)

	req, _ := http.NewRequest("DELETE", "/sessions/s1", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []string{"s1"}, engine.deleted)
}

func TestListSessions(t *testing.T) {
	engine := &MockEngine{sessions: []string{"s1", "s2"}}
	handler := NewHandler(engine)

	req, _ := http.NewRequest("GET", "/sessions", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp SessionsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, []string{"s1", "s2"}, resp.Sessions)
}

func TestCORSPreflight(t *testing.T) {
	handler := NewHandler(&MockEngine{})

	req, _ := http.NewRequest("OPTIONS", "/sessions/s1/messages", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
