package credentials

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(map[string]string{
		"admin": "password123",
		"yam":   "mypassword",
	}, WithCost(bcrypt.MinCost))
	require.NoError(t, err)
	return s
}

func TestVerify(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name     string
		username string
		password string
		want     bool
	}{
		{"admin ok", "admin", "password123", true},
		{"yam ok", "yam", "mypassword", true},
		{"wrong password", "admin", "wrong", false},
		{"password of other user", "admin", "mypassword", false},
		{"case sensitive password", "admin", "Password123", false},
		{"case sensitive username", "Admin", "password123", false},
		{"unknown user", "mallory", "password123", false},
		{"empty username", "", "", false},
		{"empty password", "admin", "", false},
		{"password prefix", "admin", "password12", false},
		{"password suffix", "admin", "password1234", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Verify(tt.username, tt.password))
		})
	}
}

func TestVerify_LongPasswordNeverMatches(t *testing.T) {
	long := strings.Repeat("a", maxPasswordLen)
	s, err := New(map[string]string{"u": long}, WithCost(bcrypt.MinCost))
	require.NoError(t, err)

	assert.True(t, s.Verify("u", long))
	// bcrypt would truncate this to the stored password; Verify must not.
	assert.False(t, s.Verify("u", long+"b"))
}

func TestNew_Errors(t *testing.T) {
	_, err := New(map[string]string{"": "x"}, WithCost(bcrypt.MinCost))
	assert.ErrorIs(t, err, ErrEmptyUsername)

	_, err = New(map[string]string{"u": strings.Repeat("x", maxPasswordLen+1)}, WithCost(bcrypt.MinCost))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestNew_DoesNotKeepPlaintext(t *testing.T) {
	s := newTestStore(t)
	for user, hash := range s.hashes {
		assert.NotContains(t, string(hash), "password123", "hash for %s leaks plaintext", user)
		assert.NotContains(t, string(hash), "mypassword", "hash for %s leaks plaintext", user)
	}
}

func TestUsernames(t *testing.T) {
	s := newTestStore(t)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"admin", "yam"}, s.Usernames())
}

func TestWithCost_OutOfRangeFallsBack(t *testing.T) {
	s, err := New(map[string]string{"a": "b"}, WithCost(1))
	require.NoError(t, err)
	cost, err := bcrypt.Cost(s.hashes["a"])
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}
