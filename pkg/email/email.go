// Package email derives weak identity hints from sender addresses.
package email

import (
	"strings"
	"unicode"
)

// DerivedName guesses the person name behind an address's local part,
// e.g. "jane.smith@corp.example" yields "Jane Smith". It returns ""
// when the local part does not split into at least a first and last
// token, since a single token is too little to match a roster against.
func DerivedName(addr string) string {
	local := strings.TrimSpace(addr)
	if at := strings.IndexByte(local, '@'); at >= 0 {
		local = local[:at]
	}
	// Plus-suffixes tag the mailbox, not the person.
	if plus := strings.IndexByte(local, '+'); plus >= 0 {
		local = local[:plus]
	}

	tokens := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})

	// Numeric tokens (mailbox suffixes like jane.smith.2) carry no name.
	parts := tokens[:0]
	for _, t := range tokens {
		if !numeric(t) {
			parts = append(parts, t)
		}
	}
	if len(parts) < 2 {
		return ""
	}

	return capitalize(parts[0]) + " " + capitalize(parts[len(parts)-1])
}

func numeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func capitalize(s string) string {
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
