package corpus

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Fold normalizes text for case-insensitive substring matching: NFKD, Unicode
// case folding, and collapsed whitespace. Decomposed output lets a base
// letter match its accented forms in either stored form. Keywords and record
// search strings must go through the same function.
func Fold(s string) string {
	s = norm.NFKD.String(s)
	// Casers are stateful; one per call.
	s = norm.NFKD.String(cases.Fold().String(s))
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// cleanCell trims whitespace, strips a UTF-8 byte order mark and replaces invalid UTF-8.
func cleanCell(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.TrimSpace(s)
}
