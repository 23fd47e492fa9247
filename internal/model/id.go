package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizeInventoryID returns the canonical form of a user-entered
// inventory id: surrounding space trimmed, Unicode NFC, upper case.
//
// NFC comes first so "a" + combining acute and precomposed "á" collapse to
// the same key before case mapping.
func NormalizeInventoryID(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	return cases.Upper(language.Und).String(s)
}
