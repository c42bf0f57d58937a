package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superego-agent/gateflow/pkg/domain"
)

// RunCheckpointStoreContract runs a suite of tests to verify that a
// CheckpointStore implementation adheres to the defined interface contract.
func RunCheckpointStoreContract(t *testing.T, store CheckpointStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		session := domain.NewSession(sessionID, domain.VariantGated)
		session.Append(domain.Message{Role: domain.RoleUser, Content: "hello"})
		session.Append(domain.Message{
			Role: domain.RolePolicy,
			Name: "superego",
			ToolCalls: []domain.ToolCall{{
				ID:   "call_1",
				Name: domain.DecisionToolName,
				Args: map[string]any{"allow": true},
			}},
		})
		session.CurrentNode = domain.NodeInvoke

		err := store.Save(ctx, sessionID, session)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, session.CurrentNode, loaded.CurrentNode)
		assert.Equal(t, session.Variant, loaded.Variant)
		require.Len(t, loaded.Messages, 2)
		assert.Equal(t, "hello", loaded.Messages[0].Content)
		assert.Equal(t, "call_1", loaded.Messages[1].ToolCalls[0].ID)
		// JSON persistence may convert typed values; just check presence.
		assert.NotNil(t, loaded.Messages[1].ToolCalls[0].Args["allow"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Snapshot Isolation", func(t *testing.T) {
		session := domain.NewSession(sessionID, domain.VariantGated)
		session.Append(domain.Message{Role: domain.RoleUser, Content: "original"})
		require.NoError(t, store.Save(ctx, sessionID, session))

		// Mutating the saved session must not leak into the store.
		session.Messages[0].Content = "mutated"
		session.CurrentNode = domain.NodeTerminal

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "original", loaded.Messages[0].Content)
		assert.Equal(t, domain.NodeGate, loaded.CurrentNode)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, domain.NewSession(sessionID, domain.VariantGated))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, domain.NewSession(id1, domain.VariantGated))
		_ = store.Save(ctx, id2, domain.NewSession(id2, domain.VariantUngated))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
