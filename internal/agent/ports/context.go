package ports

import "context"

// DefaultSessionID is used when a caller does not supply a session id.
const DefaultSessionID = "default"

// sessionCtxKey carries the active session id through a turn so tools with a
// model-constrained signature (no session_id argument) can still resolve
// session-scoped state. Context values are goroutine-safe per request, so
// concurrent turns on different sessions never observe each other's id.
type sessionCtxKey struct{}

// WithSessionID annotates ctx with the session driving the current turn.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	return context.WithValue(ctx, sessionCtxKey{}, sessionID)
}

// SessionIDFromContext extracts the active session id, falling back to
// DefaultSessionID when the turn was started without one.
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return DefaultSessionID
	}
	if id, ok := ctx.Value(sessionCtxKey{}).(string); ok && id != "" {
		return id
	}
	return DefaultSessionID
}
