package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/cloudbox/internal/util"
)

// ErrEmptySecret is returned when a Signer is created without a key.
var ErrEmptySecret = errors.New("session secret must not be empty")

// Signer authenticates cookie values with HMAC-SHA256 under the server's
// secret key. The key is held in a memguard Enclave (encrypted at rest in
// memory) and only decrypted for the duration of a single MAC computation.
type Signer struct {
	key *memguard.Enclave
}

// NewSigner returns a Signer for secret. The caller's slice is not modified.
func NewSigner(secret []byte) (*Signer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	// NewEnclave wipes its input.
	return &Signer{key: memguard.NewEnclave(util.CopyBytes(secret))}, nil
}

// Sign returns "token.signature".
func (s *Signer) Sign(token string) (string, error) {
	mac, err := s.mac(token)
	if err != nil {
		return "", err
	}
	return token + "." + base64.RawURLEncoding.EncodeToString(mac), nil
}

// Verify checks a value produced by Sign and returns the embedded token.
func (s *Signer) Verify(value string) (string, bool) {
	i := strings.LastIndexByte(value, '.')
	if i <= 0 || i == len(value)-1 {
		return "", false
	}
	token, sig := value[:i], value[i+1:]
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", false
	}
	want, err := s.mac(token)
	if err != nil {
		return "", false
	}
	if !hmac.Equal(got, want) {
		return "", false
	}
	return token, true
}

func (s *Signer) mac(token string) ([]byte, error) {
	buf, err := s.key.Open()
	if err != nil {
		return nil, fmt.Errorf("opening session key: %w", err)
	}
	defer buf.Destroy()
	h := hmac.New(sha256.New, buf.Bytes())
	h.Write([]byte(token))
	return h.Sum(nil), nil
}
