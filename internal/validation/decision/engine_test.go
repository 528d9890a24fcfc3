package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"docgate/internal/validation/models"
)

func cleanSignals() Signals {
	return Signals{
		Owner:        models.OwnerMatch{Confidence: 0.95, NameScore: 0.97},
		Expiry:       models.ExpiryInfo{Status: models.ExpiryLater},
		Authenticity: models.Authenticity{Score: 0.90, FormatValid: true},
		Compliance:   models.Compliance{MatchesRequestType: true, Score: 1.0},
	}
}

func hasIssue(d models.Decision, code string) bool {
	for _, i := range d.Issues {
		if i.Code == code {
			return true
		}
	}
	return false
}

func TestDecideCleanDocumentAutoApproves(t *testing.T) {
	d := Decide(cleanSignals(), models.DefaultThresholds())

	assert.Equal(t, models.StatusVerified, d.OverallStatus)
	assert.True(t, d.CanAutoApprove)
	assert.False(t, d.RequiresAdminReview)
	assert.Equal(t, models.PriorityLow, d.ReviewPriority)
	assert.Empty(t, d.Issues)
}

func TestDecideExpiredDocumentRejected(t *testing.T) {
	s := cleanSignals()
	s.Expiry.Status = models.Expired

	d := Decide(s, models.DefaultThresholds())

	assert.Equal(t, models.StatusRejected, d.OverallStatus)
	assert.True(t, hasIssue(d, IssueDocumentExpired))
	assert.False(t, d.CanAutoApprove)
	assert.Equal(t, models.PriorityCritical, d.ReviewPriority)
}

func TestDecideExpiredAllowedByOrgConfig(t *testing.T) {
	s := cleanSignals()
	s.Expiry.Status = models.Expired

	thresholds := models.DefaultThresholds()
	thresholds.AllowExpired = true

	d := Decide(s, thresholds)
	assert.False(t, hasIssue(d, IssueDocumentExpired))
	assert.Equal(t, models.StatusVerified, d.OverallStatus)
}

func TestDecideOwnerConfidenceBands(t *testing.T) {
	thresholds := models.DefaultThresholds()

	low := cleanSignals()
	low.Owner.Confidence = 0.60
	d := Decide(low, thresholds)
	assert.True(t, hasIssue(d, IssueOwnerMatchLow))
	assert.Equal(t, models.StatusRejected, d.OverallStatus)

	mid := cleanSignals()
	mid.Owner.Confidence = 0.80
	d = Decide(mid, thresholds)
	assert.True(t, hasIssue(d, IssueOwnerMatchUncertain))
	assert.Equal(t, models.StatusNeedsReview, d.OverallStatus)
	// Below 0.85 the review queue should see it early.
	assert.Equal(t, models.PriorityHigh, d.ReviewPriority)
}

func TestDecideAuthenticityBands(t *testing.T) {
	thresholds := models.DefaultThresholds()

	low := cleanSignals()
	low.Authenticity.Score = 0.50
	d := Decide(low, thresholds)
	assert.True(t, hasIssue(d, IssueAuthenticityLow))
	assert.Equal(t, models.StatusRejected, d.OverallStatus)

	mid := cleanSignals()
	mid.Authenticity.Score = 0.80
	d = Decide(mid, thresholds)
	assert.True(t, hasIssue(d, IssueAuthenticityUncert))
	assert.False(t, d.CanAutoApprove)
	assert.Equal(t, models.PriorityMedium, d.ReviewPriority)
}

func TestDecideComplianceMismatchIsCritical(t *testing.T) {
	s := cleanSignals()
	s.Compliance = models.Compliance{RequestedType: "passport", MatchesRequestType: false, Score: 0.5}

	d := Decide(s, models.DefaultThresholds())
	assert.True(t, hasIssue(d, IssueTypeMismatch))
	assert.Equal(t, models.StatusRejected, d.OverallStatus)
}

func TestDecideExpiringSoonIsWarning(t *testing.T) {
	s := cleanSignals()
	days := 30
	s.Expiry = models.ExpiryInfo{Status: models.ExpirySoon, DaysUntilExpiry: &days}

	d := Decide(s, models.DefaultThresholds())
	assert.True(t, hasIssue(d, IssueExpiringSoon))
	// A warning alone never blocks auto-approval; it only raises priority.
	assert.Equal(t, models.StatusVerified, d.OverallStatus)
	assert.True(t, d.CanAutoApprove)
	assert.Equal(t, models.PriorityMedium, d.ReviewPriority)
}

func TestDecideDuplicateWarns(t *testing.T) {
	s := cleanSignals()
	s.Authenticity.IsDuplicate = true
	s.Authenticity.RequiresReview = true

	d := Decide(s, models.DefaultThresholds())
	assert.True(t, hasIssue(d, IssueDuplicate))
	assert.Equal(t, models.StatusNeedsReview, d.OverallStatus)
	assert.False(t, d.CanAutoApprove)
	assert.True(t, d.RequiresAdminReview)
}

func TestDecideDuplicateBlocksAutoApprovalDespiteCleanScores(t *testing.T) {
	// Every score clears its threshold; the duplicate alone must keep the
	// document out of the auto-approve path.
	s := cleanSignals()
	s.Authenticity.IsDuplicate = true

	d := Decide(s, models.DefaultThresholds())
	assert.False(t, d.CanAutoApprove)
	assert.Equal(t, models.StatusNeedsReview, d.OverallStatus)
	assert.Equal(t, models.PriorityMedium, d.ReviewPriority)
}

func TestDecideManyWarningsEscalatePriority(t *testing.T) {
	s := cleanSignals()
	s.Owner.Confidence = 0.88 // warning band, above the high-priority cutoff
	s.Authenticity.Score = 0.80
	s.Authenticity.IsDuplicate = true
	days := 10
	s.Expiry = models.ExpiryInfo{Status: models.ExpirySoon, DaysUntilExpiry: &days}

	d := Decide(s, models.DefaultThresholds())
	assert.Equal(t, models.PriorityHigh, d.ReviewPriority)
	assert.Equal(t, models.StatusNeedsReview, d.OverallStatus)
}

func TestDecideThresholdFloorsBlockAutoApproval(t *testing.T) {
	thresholds := models.DefaultThresholds()
	thresholds.MinOwnerMatch = 0.99

	d := Decide(cleanSignals(), thresholds)
	assert.False(t, d.CanAutoApprove)
	assert.Equal(t, models.StatusNeedsReview, d.OverallStatus)
	assert.True(t, d.RequiresAdminReview)
}
