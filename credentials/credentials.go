// Package credentials holds the static username/password table used for login.
//
// The table is fixed at construction. Passwords are bcrypt-hashed as they are
// loaded, so the plaintext is never kept by the store and comparisons do not
// leak timing information about where a mismatch occurred.
package credentials

import (
	"errors"
	"fmt"
	"sort"

	"golang.org/x/crypto/bcrypt"
)

// maxPasswordLen is bcrypt's input limit. Longer inputs would be silently
// truncated, which would break exact-match semantics.
const maxPasswordLen = 72

var (
	// ErrEmptyUsername is returned when the table contains an empty username.
	ErrEmptyUsername = errors.New("username must not be empty")
	// ErrPasswordTooLong is returned when a configured password exceeds 72 bytes.
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
)

// Store answers username/password match queries.
type Store struct {
	hashes    map[string][]byte
	dummyHash []byte
}

// Option configures a Store.
type Option func(*options)

type options struct {
	cost int
}

// WithCost sets the bcrypt work factor. Values outside bcrypt's accepted
// range fall back to bcrypt.DefaultCost.
func WithCost(cost int) Option {
	return func(o *options) {
		o.cost = cost
	}
}

// New hashes every entry of users and returns a ready Store.
func New(users map[string]string, opts ...Option) (*Store, error) {
	o := options{cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cost < bcrypt.MinCost || o.cost > bcrypt.MaxCost {
		o.cost = bcrypt.DefaultCost
	}

	s := &Store{hashes: make(map[string][]byte, len(users))}
	for username, password := range users {
		if username == "" {
			return nil, ErrEmptyUsername
		}
		if len(password) > maxPasswordLen {
			return nil, fmt.Errorf("user %q: %w", username, ErrPasswordTooLong)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), o.cost)
		if err != nil {
			return nil, fmt.Errorf("hashing password for %q: %w", username, err)
		}
		s.hashes[username] = hash
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("cloudbox-unknown-user"), o.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing placeholder password: %w", err)
	}
	s.dummyHash = dummy
	return s, nil
}

// Verify reports whether username exists and password matches it exactly.
func (s *Store) Verify(username, password string) bool {
	if len(password) > maxPasswordLen {
		return false
	}
	hash, ok := s.hashes[username]
	if !ok {
		// Spend the same work as a real comparison.
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

// Len returns the number of configured users.
func (s *Store) Len() int {
	return len(s.hashes)
}

// Usernames returns the configured usernames in sorted order.
func (s *Store) Usernames() []string {
	names := make([]string, 0, len(s.hashes))
	for name := range s.hashes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
