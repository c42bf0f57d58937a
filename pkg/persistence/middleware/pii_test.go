package middleware_test

import (
	"context"
	"testing"

	"github.com/superego-agent/gateflow/pkg/adapters/memory"
	"github.com/superego-agent/gateflow/pkg/domain"
	"github.com/superego-agent/gateflow/pkg/persistence/middleware"
)

func TestRedactionMiddleware_Masking(t *testing.T) {
	underlyingStore := memory.NewStore()
	// Mask email addresses and a card-number shape
	mw := middleware.NewRedactionMiddleware([]string{
		`[a-z0-9._]+@[a-z0-9.]+`,
		`\b\d{4}-\d{4}-\d{4}-\d{4}\b`,
	})
	secureStore := mw(underlyingStore)

	ctx := context.Background()
	sessionID := "pii-session"
	session := domain.NewSession(sessionID, domain.VariantGated)
	session.Append(domain.Message{Role: domain.RoleUser, Content: "mail me at jdoe@example.com"})
	session.Append(domain.Message{
		Role: domain.RoleResponse,
		ToolCalls: []domain.ToolCall{{
			ID:   "call_1",
			Name: "calculator",
			Args: map[string]any{
				"expression": "pay 1111-2222-3333-4444",
				"nested":     map[string]any{"note": "cc 5555-6666-7777-8888"},
			},
		}},
	})

	// 1. Save
	if err := secureStore.Save(ctx, sessionID, session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Verify In-Memory Session is NOT MODIFIED (Immutability check)
	if session.Messages[0].Content != "mail me at jdoe@example.com" {
		t.Error("Middleware modified original session in memory!")
	}

	// 2. Load from Underlying Store (Should be masked)
	stored, err := underlyingStore.Load(ctx, sessionID)
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}

	if stored.Messages[0].Content != "mail me at ***" {
		t.Errorf("Email should be masked, got: %v", stored.Messages[0].Content)
	}
	args := stored.Messages[1].ToolCalls[0].Args
	if args["expression"] != "pay ***" {
		t.Errorf("Card number should be masked, got: %v", args["expression"])
	}
	nested := args["nested"].(map[string]any)
	if nested["note"] != "cc ***" {
		t.Errorf("Nested card number should be masked, got: %v", nested["note"])
	}
}

func TestChainOrdersMiddlewares(t *testing.T) {
	underlyingStore := memory.NewStore()
	key := generateKey(t)

	// Redaction runs before encryption so the ciphertext never holds raw PII.
	store := middleware.Chain(underlyingStore,
		middleware.NewRedactionMiddleware([]string{`[a-z0-9._]+@[a-z0-9.]+`}),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}),
	)

	ctx := context.Background()
	session := domain.NewSession("chain-session", domain.VariantGated)
	session.Append(domain.Message{Role: domain.RoleUser, Content: "jdoe@example.com"})

	if err := store.Save(ctx, "chain-session", session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(ctx, "chain-session")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Messages[0].Content != "***" {
		t.Errorf("Expected redacted content after roundtrip, got %q", loaded.Messages[0].Content)
	}
}
