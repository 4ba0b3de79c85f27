// Package vehicle handles fleet registration numbers as they appear in
// free-text input. Operators type numbers with arbitrary spacing and
// hyphenation ("mh08-ap-1894", "MH08 AP 1894"); the database stores the
// canonical compact form ("MH08AP1894").
package vehicle

import (
	"regexp"
	"strings"
)

var separators = regexp.MustCompile(`[\s\-]+`)

// Normalize canonicalizes a registration number: uppercase with all
// whitespace and hyphens removed.
func Normalize(s string) string {
	return separators.ReplaceAllString(strings.ToUpper(s), "")
}

// Indian-format registration: state code, district number, series, number.
var regNumber = regexp.MustCompile(`(?i)\b[A-Z]{2}[\s\-]?\d{1,2}[\s\-]?[A-Z]{1,3}[\s\-]?\d{3,4}\b`)

// Extract returns the first registration number found in text, normalized,
// or "" when none is present.
func Extract(text string) string {
	m := regNumber.FindString(text)
	if m == "" {
		return ""
	}
	return Normalize(m)
}
