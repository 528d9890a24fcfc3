// Package expiry computes expiry status from extracted document dates.
package expiry

import (
	"time"

	"docgate/internal/validation/models"
)

// soonWindowDays is inclusive: a document expiring in exactly 90 days is
// already expiring_soon.
const soonWindowDays = 90

// Analyze is a pure function of the extracted dates. Day counts use
// calendar-day truncation so partial days never shift the boundary.
func Analyze(expiryDate, issueDate *time.Time, now time.Time) models.ExpiryInfo {
	info := models.ExpiryInfo{
		Status:     models.ExpiryNone,
		ExpiryDate: expiryDate,
		IssueDate:  issueDate,
	}
	if expiryDate == nil {
		return info
	}

	days := daysBetween(now, *expiryDate)
	info.DaysUntilExpiry = &days

	switch {
	case days < 0:
		info.Status = models.Expired
	case days <= soonWindowDays:
		info.Status = models.ExpirySoon
	default:
		info.Status = models.ExpiryLater
	}
	return info
}

// daysBetween counts whole calendar days from a to b, both truncated to
// midnight in a's location.
func daysBetween(a, b time.Time) int {
	am := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, a.Location())
	bm := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, a.Location())
	return int(bm.Sub(am).Hours() / 24)
}
