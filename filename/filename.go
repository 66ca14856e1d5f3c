// Package filename decides which upload names are accepted and turns accepted
// names into safe, flat storage names.
package filename

import (
	"errors"
	"strings"

	"github.com/jmcleod/cloudbox/internal/util"
)

// AllowedExtensions is the fixed allow-list of upload extensions, lower-case
// and without the leading dot.
var AllowedExtensions = map[string]struct{}{
	"txt":  {},
	"pdf":  {},
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"gif":  {},
	"docx": {},
	"xlsx": {},
}

var (
	// ErrRejected is wrapped by every classification failure.
	ErrRejected = errors.New("file type not allowed")
	// ErrNoExtension indicates the name has no extension at all.
	ErrNoExtension = &rejection{"name has no extension"}
	// ErrExtensionNotAllowed indicates the extension is outside the allow-list.
	ErrExtensionNotAllowed = &rejection{"extension not allowed"}
	// ErrEmptyName indicates nothing usable remained after sanitizing.
	ErrEmptyName = &rejection{"name is empty after sanitizing"}
)

type rejection struct {
	msg string
}

func (r *rejection) Error() string { return r.msg }

func (r *rejection) Unwrap() error { return ErrRejected }

// Allowed reports whether raw has an extension from the allow-list.
// Matching is case-insensitive.
func Allowed(raw string) bool {
	return checkExtension(raw) == nil
}

// Classify validates raw and returns its safe storage name. Every error it
// returns wraps ErrRejected.
func Classify(raw string) (string, error) {
	if err := checkExtension(raw); err != nil {
		return "", err
	}
	safe := Secure(raw)
	if safe == "" {
		return "", ErrEmptyName
	}
	// Sanitizing can eat the extension, e.g. ".pdf" becomes "pdf".
	if err := checkExtension(safe); err != nil {
		return "", ErrExtensionNotAllowed
	}
	return safe, nil
}

func checkExtension(name string) error {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ErrNoExtension
	}
	if _, ok := AllowedExtensions[strings.ToLower(name[i+1:])]; !ok {
		return ErrExtensionNotAllowed
	}
	return nil
}

// Secure collapses name to an ASCII basename made of letters, digits, '_',
// '.' and '-'. Path separators become word breaks, runs of whitespace become
// a single '_', and leading or trailing '.' and '_' are trimmed. The result
// may be empty.
func Secure(name string) string {
	name = util.Normalize(name)

	var ascii strings.Builder
	ascii.Grow(len(name))
	for _, r := range name {
		switch {
		case r > 0x7f:
			// Combining marks left over from NFKD and any other non-ASCII.
		case r == '/' || r == '\\':
			ascii.WriteByte(' ')
		default:
			ascii.WriteRune(r)
		}
	}

	joined := strings.Join(strings.Fields(ascii.String()), "_")

	var out strings.Builder
	out.Grow(len(joined))
	for i := 0; i < len(joined); i++ {
		if c := joined[i]; isSafeByte(c) {
			out.WriteByte(c)
		}
	}
	return strings.Trim(out.String(), "._")
}

func isSafeByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_', c == '.', c == '-':
		return true
	}
	return false
}
