// Package validation holds small input checks shared across services.
package validation

import "regexp"

var specialChars = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)

// HasSpecialChar reports whether s contains at least one special character.
// The auth service requires one in every password.
func HasSpecialChar(s string) bool {
	return specialChars.MatchString(s)
}
