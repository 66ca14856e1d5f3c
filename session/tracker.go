package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmcleod/cloudbox/internal/uuid"
)

// DefaultDuration is the absolute lifetime of a session.
const DefaultDuration = 24 * time.Hour

// ErrEmptyUsername is returned when a session is requested for no user.
var ErrEmptyUsername = errors.New("session username must not be empty")

// Tracker binds opaque tokens to logged-in usernames.
type Tracker struct {
	store       Store
	duration    time.Duration
	idleTimeout time.Duration
	now         func() time.Time
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithDuration sets the absolute session lifetime. Non-positive values keep
// DefaultDuration.
func WithDuration(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.duration = d
		}
	}
}

// WithIdleTimeout ends sessions that go unused for d. Zero disables the
// idle check.
func WithIdleTimeout(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		t.idleTimeout = d
	}
}

// NewTracker returns a Tracker over store.
func NewTracker(store Store, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store:    store,
		duration: DefaultDuration,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Duration returns the configured session lifetime.
func (t *Tracker) Duration() time.Duration {
	return t.duration
}

// Create starts a new session for username and returns its token and
// expiry time.
func (t *Tracker) Create(username string) (string, time.Time, error) {
	if username == "" {
		return "", time.Time{}, ErrEmptyUsername
	}
	now := t.now()
	token := uuid.New()
	s := Session{
		Username:       username,
		CreatedAt:      now,
		ExpiresAt:      now.Add(t.duration),
		LastAccessedAt: now,
	}
	if err := t.store.Put(token, s); err != nil {
		return "", time.Time{}, fmt.Errorf("storing session: %w", err)
	}
	return token, s.ExpiresAt, nil
}

// Resolve returns the username bound to token. ok is false for unknown,
// expired, and idle sessions.
func (t *Tracker) Resolve(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	s, ok := t.store.Get(token)
	if !ok {
		return "", false
	}
	now := t.now()
	if s.Expired(now) {
		t.store.Delete(token)
		return "", false
	}
	if t.idleTimeout > 0 {
		if now.Sub(s.LastAccessedAt) > t.idleTimeout {
			t.store.Delete(token)
			return "", false
		}
		t.store.Touch(token, now)
	}
	return s.Username, true
}

// Destroy ends the session for token. It is safe to call for unknown tokens.
func (t *Tracker) Destroy(token string) {
	if token == "" {
		return
	}
	t.store.Delete(token)
}
