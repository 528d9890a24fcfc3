package ownermatch

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docgate/internal/validation/models"
)

func employee(name, email string, dob *time.Time) models.Employee {
	return models.Employee{ID: uuid.New(), FullName: name, Email: email, DOB: dob}
}

func TestScoreNamesCommaReorderedPermutations(t *testing.T) {
	// Comma-reordered permutations of the same name must score >= 0.95.
	pairs := [][2]string{
		{"Doe, John", "John Doe"},
		{"Smith, Anna Maria", "Anna Maria Smith"},
		{"O'Neill, Siobhan", "Siobhan O'Neill"},
	}
	for _, p := range pairs {
		score := ScoreNames(p[0], p[1])
		assert.GreaterOrEqual(t, score, 0.95, "ScoreNames(%q, %q) = %v", p[0], p[1], score)
	}
}

func TestScoreNamesIdentical(t *testing.T) {
	assert.InDelta(t, 1.0, ScoreNames("John Doe", "John Doe"), 1e-9)
}

func TestScoreNamesTypoTolerance(t *testing.T) {
	score := ScoreNames("Jon Doe", "John Doe")
	assert.Greater(t, score, 0.80)
	assert.Less(t, score, 1.0)
}

func TestScoreNamesDifferentPeople(t *testing.T) {
	score := ScoreNames("John Doe", "Maria Gonzalez")
	assert.Less(t, score, 0.5)
}

func TestScoreNamesOneSidedMiddleSoftPenalty(t *testing.T) {
	with := ScoreNames("John Michael Doe", "John Doe")
	without := ScoreNames("John Doe", "John Doe")
	assert.Less(t, with, without)
	// Soft penalty: still comfortably above the review threshold.
	assert.Greater(t, with, 0.90)
}

func TestMatchExactEmailIsStrongPrior(t *testing.T) {
	dob := time.Date(1990, 5, 12, 0, 0, 0, 0, time.UTC)
	emp := employee("John Doe", "john.doe@acme.example", &dob)
	roster := []models.Employee{
		employee("Maria Gonzalez", "maria@acme.example", nil),
		emp,
	}

	m := New()
	result := m.Match(roster, Input{
		SenderEmail:  "John.Doe@acme.example",
		DocumentName: "Doe, John",
		DocumentDOB:  &dob,
	})

	require.NotNil(t, result.MatchedEmployeeID)
	assert.Equal(t, emp.ID, *result.MatchedEmployeeID)
	assert.True(t, result.EmailMatch)
	assert.True(t, result.DOBMatch)
	assert.GreaterOrEqual(t, result.NameScore, 0.95)
	assert.GreaterOrEqual(t, result.Confidence, 0.95)
	assert.False(t, result.RequiresReview)
}

func TestMatchRosterScanRequiresFloor(t *testing.T) {
	roster := []models.Employee{
		employee("Maria Gonzalez", "maria@acme.example", nil),
		employee("Pieter Janssen", "pieter@acme.example", nil),
	}

	m := New()

	// Close name, unknown sender address: accepted via roster scan.
	hit := m.Match(roster, Input{SenderEmail: "personal@gmail.example", DocumentName: "Maria Gonzales"})
	require.NotNil(t, hit.MatchedEmployeeID)
	assert.Equal(t, roster[0].ID, *hit.MatchedEmployeeID)
	assert.False(t, hit.EmailMatch)

	// Nothing on the roster resembles this name: no match at all.
	miss := m.Match(roster, Input{SenderEmail: "personal@gmail.example", DocumentName: "Włodzimierz Krzyżanowski"})
	assert.Nil(t, miss.MatchedEmployeeID)
	assert.Zero(t, miss.NameScore)
}

func TestMatchConfidenceBlend(t *testing.T) {
	emp := employee("John Doe", "john@acme.example", nil)
	m := New()

	// Email only, no printed name: confidence is exactly the email bonus.
	result := m.Match([]models.Employee{emp}, Input{SenderEmail: "john@acme.example"})
	assert.InDelta(t, 0.3, result.Confidence, 1e-9)
	assert.True(t, result.RequiresReview)
}

func TestMatchReviewThresholdTunable(t *testing.T) {
	emp := employee("John Doe", "john@acme.example", nil)
	m := New(WithReviewThreshold(0.25))

	result := m.Match([]models.Employee{emp}, Input{SenderEmail: "john@acme.example"})
	assert.False(t, result.RequiresReview)
}

func TestMatchDerivedNameFallback(t *testing.T) {
	emp := employee("Jane Smith", "jane.smith@corp.example", nil)
	roster := []models.Employee{
		employee("Maria Gonzalez", "maria@corp.example", nil),
		emp,
	}
	m := New()

	// Classifier found no printed name and the personal address is not on
	// the roster, but its local part still names the owner.
	result := m.Match(roster, Input{SenderEmail: "jane.smith@gmail.example"})
	require.NotNil(t, result.MatchedEmployeeID)
	assert.Equal(t, emp.ID, *result.MatchedEmployeeID)
	assert.False(t, result.EmailMatch)
	assert.InDelta(t, 0.85, result.NameScore, 1e-9)
	assert.True(t, result.RequiresReview)

	// A bare local part derives nothing usable.
	miss := m.Match(roster, Input{SenderEmail: "jane@gmail.example"})
	assert.Nil(t, miss.MatchedEmployeeID)
}

func TestMatchNoEvidence(t *testing.T) {
	m := New()
	result := m.Match([]models.Employee{employee("John Doe", "john@acme.example", nil)}, Input{})
	assert.Nil(t, result.MatchedEmployeeID)
	assert.Zero(t, result.Confidence)
	assert.True(t, result.RequiresReview)
}
