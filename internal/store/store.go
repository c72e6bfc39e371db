// Package store defines the persistence contract for chat history and step
// traces, with file and Redis backed implementations in subpackages.
package store

import (
	"context"
	"errors"

	"github.com/FabG/chainlit-ui/pkg/types"
)

// ErrNotFound is returned when a session has no persisted record.
var ErrNotFound = errors.New("not found")

// History persists session records, chat transcripts, and closed steps.
// Implementations must be safe for concurrent use. Messages and Steps return
// records in creation order.
type History interface {
	SaveSession(ctx context.Context, info *types.SessionInfo) error
	Session(ctx context.Context, sessionID string) (*types.SessionInfo, error)
	Sessions(ctx context.Context) ([]*types.SessionInfo, error)
	SaveMessage(ctx context.Context, msg *types.Message) error
	Messages(ctx context.Context, sessionID string) ([]*types.Message, error)
	SaveStep(ctx context.Context, step *types.Step) error
	Steps(ctx context.Context, sessionID string) ([]*types.Step, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Close() error
}
