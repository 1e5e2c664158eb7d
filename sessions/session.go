package sessions

import (
	"context"
	"time"
)

// Session is the server-side record correlated with the browser cookie.
// A session holds at most one in-flight flow context and at most one bound
// identity at a time.
type Session struct {
	ID          string       // Unique session identifier (UUID)
	Identity    []byte       // Serialized identity record (nil while anonymous)
	FlowContext *FlowContext // In-flight authorization attempt (nil otherwise)
	CreatedAt   time.Time    // When the session was created
	ExpiresAt   time.Time    // When the session expires
}

// FlowContext is the correlation state for a single in-flight login attempt.
// It is created on login initiation, consumed exactly once on callback, and
// deleted afterwards. The verifier never leaves the server; only the derived
// challenge is sent to the provider.
type FlowContext struct {
	State         string
	CodeVerifier  string
	CodeChallenge string
	CreatedAt     time.Time
}

// Authenticated reports whether an identity has been bound to the session.
func (s *Session) Authenticated() bool {
	return s != nil && len(s.Identity) > 0
}

// Expired reports whether the session has passed its expiry. The expiry
// check at read time is authoritative regardless of pruning cadence.
func (s *Session) Expired(now time.Time) bool {
	return s != nil && !s.ExpiresAt.After(now)
}

// Repo defines the interface for session storage operations.
// Implementations must serialize writes per session ID so that concurrent
// requests never observe a torn record.
type Repo interface {
	// Create allocates a fresh session with a new unguessable identifier
	// and persists it before returning
	Create(ctx context.Context) (*Session, error)

	// Get retrieves a session by ID; expired sessions are reported as
	// ErrSessionNotFound
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Upsert persists the full session record synchronously
	Upsert(ctx context.Context, sessionID string, session *Session) error

	// Delete irrevocably removes a session; deleting a missing session is
	// not an error
	Delete(ctx context.Context, sessionID string) error

	// DeleteExpiredSessions removes sessions whose expiry is at or before
	// the given time
	DeleteExpiredSessions(ctx context.Context, cutoff time.Time) error
}
