// Package decision aggregates pipeline signals into an overall verdict,
// auto-approval flag, and review priority.
package decision

import (
	"fmt"

	"docgate/internal/validation/models"
)

// Issue codes surfaced to reviewers.
const (
	IssueOwnerMatchLow       = "owner_match_low"
	IssueOwnerMatchUncertain = "owner_match_uncertain"
	IssueDocumentExpired     = "document_expired"
	IssueExpiringSoon        = "document_expiring_soon"
	IssueAuthenticityLow     = "authenticity_low"
	IssueAuthenticityUncert  = "authenticity_uncertain"
	IssueTypeMismatch        = "request_type_mismatch"
	IssueDuplicate           = "duplicate_document"
)

const (
	ownerCriticalBelow = 0.70
	ownerWarnBelow     = 0.90
	ownerHighPriority  = 0.85

	authCriticalBelow = 0.70
	authWarnBelow     = 0.85
)

// Signals bundles everything the engine weighs.
type Signals struct {
	Owner        models.OwnerMatch
	Expiry       models.ExpiryInfo
	Authenticity models.Authenticity
	Compliance   models.Compliance
}

// Decide applies the organization's thresholds to the collected signals.
func Decide(s Signals, thresholds models.Thresholds) models.Decision {
	var d models.Decision

	switch {
	case s.Owner.Confidence < ownerCriticalBelow:
		d.Issues = append(d.Issues, critical(IssueOwnerMatchLow,
			fmt.Sprintf("owner match confidence %.2f below %.2f", s.Owner.Confidence, ownerCriticalBelow)))
	case s.Owner.Confidence < ownerWarnBelow:
		d.Issues = append(d.Issues, warning(IssueOwnerMatchUncertain,
			fmt.Sprintf("owner match confidence %.2f needs confirmation", s.Owner.Confidence)))
	}

	switch s.Expiry.Status {
	case models.Expired:
		if !thresholds.AllowExpired {
			d.Issues = append(d.Issues, critical(IssueDocumentExpired, "document is expired"))
		}
	case models.ExpirySoon:
		d.Issues = append(d.Issues, warning(IssueExpiringSoon, expiringMessage(s.Expiry)))
	}

	switch {
	case s.Authenticity.Score < authCriticalBelow:
		d.Issues = append(d.Issues, critical(IssueAuthenticityLow,
			fmt.Sprintf("authenticity score %.2f below %.2f", s.Authenticity.Score, authCriticalBelow)))
	case s.Authenticity.Score < authWarnBelow:
		d.Issues = append(d.Issues, warning(IssueAuthenticityUncert,
			fmt.Sprintf("authenticity score %.2f needs confirmation", s.Authenticity.Score)))
	}

	if s.Authenticity.IsDuplicate {
		d.Issues = append(d.Issues, warning(IssueDuplicate, "content hash matches a previously submitted document"))
	}

	if !s.Compliance.MatchesRequestType {
		d.Issues = append(d.Issues, critical(IssueTypeMismatch,
			fmt.Sprintf("classified type does not satisfy requested type %q", s.Compliance.RequestedType)))
	}

	criticals := d.CriticalIssues()
	warnings := len(d.Issues) - criticals

	// A duplicate or format mismatch always goes through a human, whatever
	// the scores say.
	d.CanAutoApprove = criticals == 0 &&
		!s.Authenticity.IsDuplicate && !s.Authenticity.RequiresReview &&
		s.Owner.Confidence >= thresholds.MinOwnerMatch &&
		s.Authenticity.Score >= thresholds.MinAuthenticity &&
		s.Compliance.Score >= thresholds.MinCompliance

	switch {
	case criticals > 0:
		d.OverallStatus = models.StatusRejected
	case d.CanAutoApprove:
		d.OverallStatus = models.StatusVerified
	default:
		d.OverallStatus = models.StatusNeedsReview
	}

	switch {
	case criticals > 0:
		d.ReviewPriority = models.PriorityCritical
	case warnings > 2 || s.Owner.Confidence < ownerHighPriority:
		d.ReviewPriority = models.PriorityHigh
	case warnings > 0:
		d.ReviewPriority = models.PriorityMedium
	default:
		d.ReviewPriority = models.PriorityLow
	}

	d.RequiresAdminReview = !d.CanAutoApprove

	return d
}

func expiringMessage(info models.ExpiryInfo) string {
	if info.DaysUntilExpiry != nil {
		return fmt.Sprintf("document expires in %d days", *info.DaysUntilExpiry)
	}
	return "document expires soon"
}

func critical(code, message string) models.Issue {
	return models.Issue{Code: code, Severity: models.SeverityCritical, Message: message}
}

func warning(code, message string) models.Issue {
	return models.Issue{Code: code, Severity: models.SeverityWarning, Message: message}
}
