package runtime

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the registry and session operations.
var (
	// ErrSessionNotFound is returned when the requested session is not registered.
	ErrSessionNotFound = errors.New("session not found")
	// ErrDuplicateSession is returned when creating a session with an ID that is
	// already registered.
	ErrDuplicateSession = errors.New("session already exists")
	// ErrSessionEnded is returned when an operation targets a session that has
	// been destroyed.
	ErrSessionEnded = errors.New("session has ended")
	// ErrDuplicateHook is returned when a singleton lifecycle hook is registered
	// twice.
	ErrDuplicateHook = errors.New("hook already registered")
	// ErrRegistryClosed is returned after Shutdown.
	ErrRegistryClosed = errors.New("registry is closed")
	// ErrAuthNotConfigured is returned by Authenticate when no auth callback is
	// registered.
	ErrAuthNotConfigured = errors.New("authentication is not configured")
)

// HookError wraps an error raised by a registered application callback. The
// runtime surfaces it into the owning session instead of propagating it to the
// transport layer.
type HookError struct {
	Hook string
	Err  error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("hook %s: %v", e.Hook, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// RegistrationError reports invalid hook wiring detected at registration time.
type RegistrationError struct {
	Kind string
	Err  error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register %s: %v", e.Kind, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// UnknownActionError is returned when an action invocation names an action that
// has no registered callback. Suggestion carries the closest known name, if any
// is close enough to be a plausible typo.
type UnknownActionError struct {
	Name       string
	Suggestion string
}

func (e *UnknownActionError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown action %q (did you mean %q?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("unknown action %q", e.Name)
}

// UnknownProfileError is returned when session creation names a chat profile
// the profiles provider does not offer.
type UnknownProfileError struct {
	Name       string
	Suggestion string
}

func (e *UnknownProfileError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown chat profile %q (did you mean %q?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("unknown chat profile %q", e.Name)
}
