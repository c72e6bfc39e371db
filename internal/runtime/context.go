package runtime

import "context"

type sessionCtxKey struct{}

// WithSession returns a context that carries the session. Task contexts
// created by the runtime carry it automatically; transports only need this
// when they call wrapped functions outside a session task.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, s)
}

// FromContext returns the session carried by the context, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionCtxKey{}).(*Session)
	return s
}
