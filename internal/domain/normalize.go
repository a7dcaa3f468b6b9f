package domain

import (
	"strings"
)

// NormalizeText prepares a term for storage and comparison:
//   - trims leading/trailing whitespace
//   - converts to lowercase
//   - collapses every whitespace run (tabs and NBSP included) into one space
//
// Brackets, diacritics, hyphens, and apostrophes are preserved.
func NormalizeText(text string) string {
	return strings.ToLower(CollapseWhitespace(text))
}

// CollapseWhitespace trims text and replaces each internal run of
// whitespace with a single space. Case is untouched.
func CollapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
