// Package sanitizer provides input normalization helpers shared across the
// authentication flows.
package sanitizer

import (
	"regexp"
	"strings"
)

var dotRegex = regexp.MustCompile(`\.{2,}`)

// NormalizeEmail lowercases and trims an email address so that provider
// identities asserting the same mailbox collide on the same key.
// Invalid shapes are returned as-is; validation happens elsewhere.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	email = strings.ToLower(email)

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}

	local := parts[0]
	domain := parts[1]

	// Consolidate consecutive dots to prevent delivery failures
	local = dotRegex.ReplaceAllString(local, ".")
	local = strings.Trim(local, ".")

	return local + "@" + domain
}

// MaskEmail preserves the full domain for user recognition while hiding
// personal info. Used when emails end up in log output.
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}

	local := parts[0]
	domain := parts[1]

	if len(local) == 0 {
		return email
	}

	if len(local) == 1 {
		return "*@" + domain
	}

	masked := string(local[0]) + strings.Repeat("*", len(local)-1)
	return masked + "@" + domain
}
