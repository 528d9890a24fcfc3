// Package ownermatch fuzzy-matches the identity printed on a document
// against the organization's roster to find the likely owner.
package ownermatch

import (
	"strings"
	"time"

	"github.com/agext/levenshtein"

	"docgate/internal/validation/models"
	"docgate/pkg/email"
)

const (
	// rosterScanFloor is the minimum name score required to accept a roster
	// candidate found without an email match.
	rosterScanFloor = 0.70

	// derivedNameDiscount weights down scores obtained from a name guessed
	// out of the sender address rather than printed on the document.
	derivedNameDiscount = 0.85

	// Blend weights for structured name comparison.
	weightFirst  = 0.35
	weightLast   = 0.40
	weightMiddle = 0.25

	// oneSidedMiddleCredit softens the penalty when only one side printed a
	// middle name; absence is weak evidence of mismatch.
	oneSidedMiddleCredit = 0.70

	// wholeStringDiscount weights down the raw whole-string similarity used
	// as a floor for names the structured parser mishandles.
	wholeStringDiscount = 0.80

	// Confidence blend per signal.
	confWeightName  = 0.6
	confWeightEmail = 0.3
	confWeightDOB   = 0.1

	defaultReviewThreshold = 0.85
)

// Matcher scores submitter identity against a roster.
type Matcher struct {
	reviewThreshold float64
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithReviewThreshold overrides the confidence below which a match requires
// human review. Organizations tune this.
func WithReviewThreshold(threshold float64) Option {
	return func(m *Matcher) { m.reviewThreshold = threshold }
}

// New constructs a Matcher.
func New(opts ...Option) *Matcher {
	m := &Matcher{reviewThreshold: defaultReviewThreshold}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Input carries the identity evidence extracted from one document.
type Input struct {
	SenderEmail  string
	DocumentName string     // name printed on the document, if classified
	DocumentDOB  *time.Time // date of birth printed on the document, if any
}

// Match finds the likely owner among roster and scores the match.
//
// Exact sender-email equality is the strong prior; failing that, every roster
// member's name is scored and the best is accepted only above a fixed floor.
func (m *Matcher) Match(roster []models.Employee, in Input) models.OwnerMatch {
	var result models.OwnerMatch

	candidate := m.byEmail(roster, in.SenderEmail)
	result.EmailMatch = candidate != nil

	switch {
	case in.DocumentName != "" && candidate != nil:
		result.NameScore = ScoreNames(in.DocumentName, candidate.FullName)
	case in.DocumentName != "":
		best, score := m.bestByName(roster, in.DocumentName)
		if best != nil && score > rosterScanFloor {
			candidate = best
			result.NameScore = score
		}
	case candidate == nil:
		// No printed name and the sender is unknown: fall back to a name
		// guessed from the address's local part, at a discount.
		if derived := email.DerivedName(in.SenderEmail); derived != "" {
			best, score := m.bestByName(roster, derived)
			score *= derivedNameDiscount
			if best != nil && score > rosterScanFloor {
				candidate = best
				result.NameScore = score
			}
		}
	}

	if candidate != nil {
		id := candidate.ID
		result.MatchedEmployeeID = &id
		result.DOBMatch = sameDate(in.DocumentDOB, candidate.DOB)
	}

	result.Confidence = confWeightName * result.NameScore
	if result.EmailMatch {
		result.Confidence += confWeightEmail
	}
	if result.DOBMatch {
		result.Confidence += confWeightDOB
	}
	if result.Confidence > 1.0 {
		result.Confidence = 1.0
	}
	result.RequiresReview = result.Confidence < m.reviewThreshold

	return result
}

func (m *Matcher) byEmail(roster []models.Employee, email string) *models.Employee {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}
	for i := range roster {
		if strings.ToLower(strings.TrimSpace(roster[i].Email)) == email {
			return &roster[i]
		}
	}
	return nil
}

func (m *Matcher) bestByName(roster []models.Employee, docName string) (*models.Employee, float64) {
	var best *models.Employee
	bestScore := 0.0
	for i := range roster {
		if score := ScoreNames(docName, roster[i].FullName); score > bestScore {
			best = &roster[i]
			bestScore = score
		}
	}
	return best, bestScore
}

// ScoreNames returns a 0..1 similarity between two person names. The
// structured comparison parses both names and tries first/last swaps; a
// discounted whole-string similarity acts as a floor for formats the parser
// misreads.
func ScoreNames(a, b string) float64 {
	na, nb := normalizeName(a), normalizeName(b)
	if na == "" || nb == "" {
		return 0
	}

	pa, pb := parseName(na), parseName(nb)

	structured := scoreParts(pa, pb)
	if swapped := scoreParts(pa, pb.swapped()); swapped > structured {
		structured = swapped
	}

	whole := similarity(na, nb) * wholeStringDiscount
	if whole > structured {
		return whole
	}
	return structured
}

type nameParts struct {
	first   string
	middles []string
	last    string
}

func (p nameParts) swapped() nameParts {
	return nameParts{first: p.last, middles: p.middles, last: p.first}
}

// normalizeName lowercases, strips punctuation other than commas (which carry
// ordering information), and collapses whitespace.
func normalizeName(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ',', r == ' ':
			b.WriteRune(r)
		case r == '-' || r == '\t':
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// parseName splits a normalized name into first/middle/last, honoring both
// "first last" and "last, first" orderings.
func parseName(s string) nameParts {
	if before, after, found := strings.Cut(s, ","); found {
		// "last, first middle..."
		last := strings.TrimSpace(before)
		rest := strings.Fields(after)
		p := nameParts{last: last}
		if len(rest) > 0 {
			p.first = rest[0]
			p.middles = rest[1:]
		}
		return p
	}

	fields := strings.Fields(s)
	switch len(fields) {
	case 0:
		return nameParts{}
	case 1:
		return nameParts{first: fields[0]}
	default:
		return nameParts{
			first:   fields[0],
			middles: fields[1 : len(fields)-1],
			last:    fields[len(fields)-1],
		}
	}
}

// scoreParts blends per-part similarities: first 35%, last 40%, middles 25%.
// When neither side has a middle name the first/last weights are
// renormalized; when only one side has one, partial credit applies instead
// of a full miss.
func scoreParts(a, b nameParts) float64 {
	first := similarity(a.first, b.first)
	last := similarity(a.last, b.last)

	switch {
	case len(a.middles) > 0 && len(b.middles) > 0:
		return weightFirst*first + weightLast*last + weightMiddle*middleSimilarity(a.middles, b.middles)
	case len(a.middles) > 0 || len(b.middles) > 0:
		return weightFirst*first + weightLast*last + weightMiddle*oneSidedMiddleCredit
	default:
		return (weightFirst*first + weightLast*last) / (weightFirst + weightLast)
	}
}

// middleSimilarity compares middle-name lists pairwise in order and averages.
func middleSimilarity(a, b []string) float64 {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	total := 0.0
	for i := 0; i < n; i++ {
		var av, bv string
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		// Initial-for-full-name (e.g. "j" vs "james") counts as a hit.
		if len(av) == 1 && strings.HasPrefix(bv, av) || len(bv) == 1 && strings.HasPrefix(av, bv) {
			total += 1.0
			continue
		}
		total += similarity(av, bv)
	}
	return total / float64(n)
}

func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.Similarity(a, b, levenshtein.NewParams())
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return false
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
