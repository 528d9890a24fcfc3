package expiry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docgate/internal/validation/models"
)

var now = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

func datePtr(t time.Time) *time.Time { return &t }

func TestAnalyzeNoExpiryDate(t *testing.T) {
	info := Analyze(nil, nil, now)
	assert.Equal(t, models.ExpiryNone, info.Status)
	assert.Nil(t, info.DaysUntilExpiry)
}

func TestAnalyzeBoundaries(t *testing.T) {
	tests := []struct {
		name string
		days int
		want models.ExpiryStatus
	}{
		{"expired yesterday", -1, models.Expired},
		{"expires today", 0, models.ExpirySoon},
		{"expires in 89 days", 89, models.ExpirySoon},
		{"expires in exactly 90 days", 90, models.ExpirySoon},
		{"expires in 91 days", 91, models.ExpiryLater},
		{"expires next year", 365, models.ExpiryLater},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := now.AddDate(0, 0, tt.days)
			info := Analyze(&exp, nil, now)
			assert.Equal(t, tt.want, info.Status)
			require.NotNil(t, info.DaysUntilExpiry)
			assert.Equal(t, tt.days, *info.DaysUntilExpiry)
		})
	}
}

func TestAnalyzeTruncatesToMidnight(t *testing.T) {
	// Expiry at 00:05 in 90 days, observed at 23:55 today: still 90 calendar
	// days apart, so the boundary stays inclusive.
	late := time.Date(2026, 3, 10, 23, 55, 0, 0, time.UTC)
	exp := time.Date(2026, 6, 8, 0, 5, 0, 0, time.UTC)
	info := Analyze(&exp, nil, late)
	require.NotNil(t, info.DaysUntilExpiry)
	assert.Equal(t, 90, *info.DaysUntilExpiry)
	assert.Equal(t, models.ExpirySoon, info.Status)
}

func TestAnalyzeKeepsDates(t *testing.T) {
	exp := now.AddDate(1, 0, 0)
	iss := now.AddDate(-1, 0, 0)
	info := Analyze(&exp, &iss, now)
	assert.Equal(t, datePtr(exp), info.ExpiryDate)
	assert.Equal(t, datePtr(iss), info.IssueDate)
}
