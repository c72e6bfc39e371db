// Package types provides the core data types for the chainlit-ui server.
package types

// SessionState describes where a session is in its lifecycle.
type SessionState string

const (
	// SessionActive accepts messages and runs tasks.
	SessionActive SessionState = "active"
	// SessionStopping is unwinding in-flight steps after a stop signal.
	SessionStopping SessionState = "stopping"
	// SessionEnded is torn down and unreachable.
	SessionEnded SessionState = "ended"
)

// SessionInfo is an immutable snapshot of a session's externally visible
// state. The runtime never hands out live session internals.
type SessionInfo struct {
	ID        string       `json:"id"`
	State     SessionState `json:"state"`
	Profile   *string      `json:"profile,omitempty"`
	User      *User        `json:"user,omitempty"`
	CreatedAt int64        `json:"createdAt"`
	Messages  int          `json:"messages"`
	OpenSteps int          `json:"openSteps"`
	Tasks     int          `json:"tasks"`
}

// User identifies an authenticated user as returned by the auth callback.
type User struct {
	ID         string         `json:"id"`
	Identifier string         `json:"identifier"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}
