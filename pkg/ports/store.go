package ports

import (
	"context"

	"github.com/superego-agent/gateflow/pkg/domain"
)

// CheckpointStore defines the interface for persisting session checkpoints.
// This allows for durable execution, enabling a conversation to resume
// across process restarts.
//
// Save must be atomic with respect to concurrent Load/Save on the same
// session ID: readers never observe a partially written snapshot.
type CheckpointStore interface {
	// Save persists the checkpoint for a given session ID.
	Save(ctx context.Context, sessionID string, session *domain.Session) error

	// Load retrieves the checkpoint for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Session, error)

	// Delete removes the checkpoint for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all known sessions.
	List(ctx context.Context) ([]string, error)
}
