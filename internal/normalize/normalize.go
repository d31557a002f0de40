// Package normalize provides per-field-type canonicalization for
// verification comparisons. All functions are pure.
package normalize

import (
	"strings"
	"unicode"
)

// honorifics are title tokens dropped during name normalization.
var honorifics = map[string]bool{
	"MR": true, "MRS": true, "MS": true, "MISS": true,
	"DR": true, "PROF": true, "SIR": true, "MADAM": true,
}

// addressAbbrevs expands common street-address abbreviations so the same
// address written long-form and short-form compares equal.
var addressAbbrevs = map[string]string{
	"ST":   "STREET",
	"RD":   "ROAD",
	"AVE":  "AVENUE",
	"DR":   "DRIVE",
	"LN":   "LANE",
	"CT":   "COURT",
	"APT":  "APARTMENT",
	"STE":  "SUITE",
	"BLDG": "BUILDING",
	"FL":   "FLOOR",
}

// Name canonicalizes a person name: punctuation stripped, whitespace
// collapsed, uppercased, honorific tokens removed.
func Name(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	words := strings.Fields(strings.ToUpper(b.String()))
	kept := words[:0]
	for _, w := range words {
		if !honorifics[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// Identifier canonicalizes an ID/passport/license number: every
// non-alphanumeric character stripped, uppercased. Idempotent.
func Identifier(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Phone reduces a phone number to its bare subscriber digits: non-digits
// stripped, a recognized country-code prefix removed, then a leading trunk
// zero removed. Country codes are tried in the given order.
func Phone(s string, countryCodes []string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	for _, cc := range countryCodes {
		if cc == "" || !strings.HasPrefix(digits, cc) {
			continue
		}
		// Only strip when a plausible subscriber number remains.
		if len(digits)-len(cc) >= 7 {
			digits = digits[len(cc):]
			break
		}
	}

	digits = strings.TrimPrefix(digits, "0")
	return digits
}

// Address canonicalizes a postal address: uppercased, abbreviations
// expanded, punctuation stripped, whitespace collapsed.
func Address(s string) string {
	words := strings.Fields(strings.ToUpper(s))
	for i, w := range words {
		trimmed := strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if full, ok := addressAbbrevs[trimmed]; ok {
			words[i] = full
		} else {
			words[i] = w
		}
	}
	joined := strings.Join(words, " ")

	var b strings.Builder
	for _, r := range joined {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
