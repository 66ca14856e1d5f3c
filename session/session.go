// Package session tracks which login, if any, a client token belongs to.
//
// Tokens are opaque random identifiers handed to the browser in a cookie.
// A Tracker binds tokens to usernames on top of a Store, which is either
// in-memory (the default) or a bbolt file that survives restarts.
package session

import "time"

// Session is the server-side state bound to a token.
type Session struct {
	Username       string    `json:"username"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// Expired reports whether the session is past its absolute lifetime at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Store abstracts session CRUD so that sessions can be stored
// in-memory (default) or in persistent backing storage.
type Store interface {
	// Get retrieves a session by token. Returns false if the session
	// does not exist or has expired; expired sessions are removed.
	Get(token string) (Session, bool)
	// Put creates or replaces the session for the given token.
	Put(token string, session Session) error
	// Touch records an access time on an existing session. It never
	// recreates a session that has been deleted.
	Touch(token string, at time.Time)
	// Delete removes a session by token. Deleting a missing token is a no-op.
	Delete(token string)
}
