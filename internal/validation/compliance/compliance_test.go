package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Driver's License", "drivers license"},
		{"driving_license", "driving license"},
		{"DRIVING-LICENSE", "driving license"},
		{"  national   id  ", "national id"},
		{"passport", "passport"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestCheckSynonyms(t *testing.T) {
	result := Check("driving license", "drivers_license")
	assert.True(t, result.MatchesRequestType)
	assert.Equal(t, 0.9, result.Score)
}

func TestCheckExactAfterNormalization(t *testing.T) {
	result := Check("Driver's License", "drivers_license")
	assert.True(t, result.MatchesRequestType)
	assert.Equal(t, 1.0, result.Score)
}

func TestCheckMismatch(t *testing.T) {
	result := Check("passport", "visa")
	assert.False(t, result.MatchesRequestType)
	assert.Equal(t, 0.5, result.Score)
}

func TestCheckSubstringContainment(t *testing.T) {
	result := Check("passport", "travel passport")
	assert.True(t, result.MatchesRequestType)
	assert.Equal(t, 0.9, result.Score)
}

func TestCheckNoRequestedType(t *testing.T) {
	result := Check("", "passport")
	assert.True(t, result.MatchesRequestType)
	assert.Equal(t, 1.0, result.Score)
	assert.Empty(t, result.RequestedType)
}

func TestCheckKeepsOriginalRequestedType(t *testing.T) {
	result := Check("Driver's License", "passport")
	assert.Equal(t, "Driver's License", result.RequestedType)
	assert.False(t, result.MatchesRequestType)
}
