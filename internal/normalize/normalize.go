// Package normalize canonicalizes identifiers for uniqueness lookups.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Caser is not safe for concurrent use, so each call builds its own.
func canonical(s string) string {
	s = norm.NFKC.String(strings.TrimSpace(s))
	return cases.Upper(language.Und).String(s)
}

// Email returns the lookup form of an email address.
func Email(s string) string {
	return canonical(s)
}

// Username returns the lookup form of a username. An empty or blank input
// stays empty.
func Username(s string) string {
	return canonical(s)
}
