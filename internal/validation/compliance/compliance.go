// Package compliance checks whether a classified document type satisfies the
// type the originating request asked for.
package compliance

import (
	"strings"

	"docgate/internal/validation/models"
)

// synonymSets groups document type spellings that mean the same thing after
// normalization. Membership in the same set counts as a match.
var synonymSets = [][]string{
	{"drivers license", "driving license", "driver license", "driving licence", "drivers licence", "dl"},
	{"passport", "travel passport"},
	{"national id", "national identity card", "identity card", "id card"},
	{"residence permit", "residency permit", "resident permit"},
	{"visa", "entry visa", "work visa"},
	{"work permit", "employment permit"},
	{"birth certificate", "certificate of birth"},
	{"social security card", "ssn card"},
	{"proof of address", "address proof", "utility bill"},
}

const (
	scoreExact = 1.0
	scoreFuzzy = 0.9
	scoreMiss  = 0.5
)

// Check compares the requested and classified types. No requested type means
// the document was unsolicited and is automatically compliant.
func Check(requestedType, classifiedType string) models.Compliance {
	if strings.TrimSpace(requestedType) == "" {
		return models.Compliance{MatchesRequestType: true, Score: scoreExact}
	}

	req := Normalize(requestedType)
	got := Normalize(classifiedType)

	result := models.Compliance{RequestedType: requestedType}
	switch {
	case req == got && req != "":
		result.MatchesRequestType = true
		result.Score = scoreExact
	case contains(req, got) || synonyms(req, got):
		result.MatchesRequestType = true
		result.Score = scoreFuzzy
	default:
		result.Score = scoreMiss
	}
	return result
}

// Normalize lowercases, strips apostrophes, and collapses underscores,
// hyphens, and whitespace runs into single spaces.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, "’", "")
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		if r == '_' || r == '-' || r == ' ' || r == '\t' {
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			lastSpace = true
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}

func contains(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func synonyms(a, b string) bool {
	for _, set := range synonymSets {
		var hasA, hasB bool
		for _, member := range set {
			if member == a {
				hasA = true
			}
			if member == b {
				hasB = true
			}
		}
		if hasA && hasB {
			return true
		}
	}
	return false
}
