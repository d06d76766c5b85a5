package service

import "strings"

// NormalizeEmail trims and lowercases an address so it can be used as the
// lookup key and token subject.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
