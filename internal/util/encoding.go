package util

import "golang.org/x/text/unicode/norm"

// Normalize returns the NFKD (compatibility decomposition) form of s.
func Normalize(s string) string {
	return norm.NFKD.String(s)
}
