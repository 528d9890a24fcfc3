// Package models defines the validation domain: queued jobs, persisted
// validation outcomes, and the intermediate signals the pipeline aggregates.
package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a ValidationJob.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobDeadLetter JobStatus = "dead_letter"
)

// OverallStatus is the pipeline's verdict for a document.
type OverallStatus string

const (
	StatusVerified    OverallStatus = "verified"
	StatusNeedsReview OverallStatus = "needs_review"
	StatusRejected    OverallStatus = "rejected"
)

// ReviewPriority orders the human review queue.
type ReviewPriority string

const (
	PriorityLow      ReviewPriority = "low"
	PriorityMedium   ReviewPriority = "medium"
	PriorityHigh     ReviewPriority = "high"
	PriorityCritical ReviewPriority = "critical"
)

// ExpiryStatus classifies a document's remaining validity window.
type ExpiryStatus string

const (
	ExpiryNone  ExpiryStatus = "no_expiry"
	Expired     ExpiryStatus = "expired"
	ExpirySoon  ExpiryStatus = "expiring_soon"
	ExpiryLater ExpiryStatus = "expiring_later"
)

// DefaultMaxAttempts bounds retries before a job dead-letters.
const DefaultMaxAttempts = 3

// ValidationJob is a queued unit of work referencing one document awaiting
// pipeline execution. next_run_at is non-decreasing across retries.
type ValidationJob struct {
	ID           uuid.UUID
	DocumentID   uuid.UUID
	Status       JobStatus
	Attempt      int
	MaxAttempts  int
	NextRunAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage string
	ErrorDetails map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewValidationJob creates a pending job due immediately.
func NewValidationJob(documentID uuid.UUID, now time.Time) *ValidationJob {
	return &ValidationJob{
		ID:          uuid.New(),
		DocumentID:  documentID,
		Status:      JobPending,
		MaxAttempts: DefaultMaxAttempts,
		NextRunAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Classification is the structured guess returned by the external model, or
// by the filename fallback when the model is unreachable.
type Classification struct {
	DocumentType   string     `json:"document_type"`
	Confidence     float64    `json:"confidence"`
	IssuingCountry string     `json:"issuing_country,omitempty"`
	DocumentNumber string     `json:"document_number,omitempty"`
	FullName       string     `json:"full_name,omitempty"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty"`
	IssueDate      *time.Time `json:"issue_date,omitempty"`
	ExpiryDate     *time.Time `json:"expiry_date,omitempty"`
	Model          string     `json:"model,omitempty"`
	Source         string     `json:"source"` // vision | text | filename
}

// OwnerMatch estimates whether the document's printed identity belongs to
// the claimed submitter.
type OwnerMatch struct {
	MatchedEmployeeID *uuid.UUID `json:"matched_employee_id,omitempty"`
	NameScore         float64    `json:"name_match_score"`
	EmailMatch        bool       `json:"email_match"`
	DOBMatch          bool       `json:"dob_match"`
	Confidence        float64    `json:"owner_match_confidence"`
	RequiresReview    bool       `json:"requires_review"`
}

// ExpiryInfo is the pure expiry analysis of the extracted dates.
type ExpiryInfo struct {
	Status          ExpiryStatus `json:"expiry_status"`
	DaysUntilExpiry *int         `json:"days_until_expiry,omitempty"`
	ExpiryDate      *time.Time   `json:"expiry_date,omitempty"`
	IssueDate       *time.Time   `json:"issue_date,omitempty"`
}

// Authenticity captures format consistency and duplicate detection.
type Authenticity struct {
	Score          float64    `json:"authenticity_score"`
	ImageQuality   float64    `json:"image_quality_score"`
	FormatValid    bool       `json:"format_valid"`
	ContentHash    string     `json:"content_hash"`
	IsDuplicate    bool       `json:"is_duplicate"`
	DuplicateOf    *uuid.UUID `json:"duplicate_of_document_id,omitempty"`
	RequiresReview bool       `json:"requires_review"`
}

// Compliance compares the classified type against the requested type.
type Compliance struct {
	RequestedType      string  `json:"requested_type,omitempty"`
	MatchesRequestType bool    `json:"matches_request_type"`
	Score              float64 `json:"request_compliance_score"`
}

// IssueSeverity distinguishes blocking findings from advisory ones.
type IssueSeverity string

const (
	SeverityCritical IssueSeverity = "critical"
	SeverityWarning  IssueSeverity = "warning"
)

// Issue is one concrete finding surfaced to reviewers.
type Issue struct {
	Code     string        `json:"code"`
	Severity IssueSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// Decision is the aggregate verdict over all signals.
type Decision struct {
	OverallStatus       OverallStatus  `json:"overall_status"`
	CanAutoApprove      bool           `json:"can_auto_approve"`
	RequiresAdminReview bool           `json:"requires_admin_review"`
	ReviewPriority      ReviewPriority `json:"review_priority"`
	Issues              []Issue        `json:"issues,omitempty"`
}

// CriticalIssues counts blocking findings.
func (d Decision) CriticalIssues() int {
	n := 0
	for _, i := range d.Issues {
		if i.Severity == SeverityCritical {
			n++
		}
	}
	return n
}

// DocumentValidation is the persisted outcome of running the pipeline on one
// document. At most one row exists per document (upsert by DocumentID).
type DocumentValidation struct {
	DocumentID uuid.UUID

	// Classification
	DocumentType           string
	DocumentTypeConfidence float64
	IssuingCountry         string
	DocumentNumber         string

	// Owner match
	MatchedEmployeeID    *uuid.UUID
	NameMatchScore       float64
	DOBMatch             bool
	OwnerMatchConfidence float64

	// Expiry
	ExpiryDate      *time.Time
	IssueDate       *time.Time
	ExpiryStatus    ExpiryStatus
	DaysUntilExpiry *int

	// Authenticity
	AuthenticityScore     float64
	ImageQualityScore     float64
	IsDuplicate           bool
	DuplicateOfDocumentID *uuid.UUID

	// Compliance
	MatchesRequestType     bool
	RequestComplianceScore float64

	// Decision
	OverallStatus       OverallStatus
	CanAutoApprove      bool
	RequiresAdminReview bool
	ReviewPriority      ReviewPriority

	// Metadata holds the intermediate signal objects for audit.
	Metadata map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Thresholds are the organization-configurable auto-approval floors.
type Thresholds struct {
	MinOwnerMatch   float64
	MinAuthenticity float64
	MinCompliance   float64
	AllowExpired    bool
}

// DefaultThresholds returns the floors used when an organization has no
// explicit configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinOwnerMatch:   0.90,
		MinAuthenticity: 0.85,
		MinCompliance:   0.95,
		AllowExpired:    false,
	}
}

// Employee is one roster entry used for owner matching.
type Employee struct {
	ID       uuid.UUID
	FullName string
	Email    string
	DOB      *time.Time
}

// ProviderConfig identifies a storage connection and its sealed credential.
type ProviderConfig struct {
	ConnectionID uuid.UUID
	Kind         string // bucket | onedrive | gdrive
	BaseURL      string
	Credential   string // sealed; opened only inside the fetcher
}

// DocumentRef resolves one document to its storage location and submitter.
type DocumentRef struct {
	DocumentID  uuid.UUID
	OrgID       uuid.UUID
	FileName    string
	MimeType    string
	StoragePath string
	SenderEmail string
	Provider    ProviderConfig
}

// BatchSummary is the aggregate result of one queue-processing invocation.
type BatchSummary struct {
	Processed  int      `json:"processed"`
	Completed  int      `json:"completed"`
	Failed     int      `json:"failed"`
	MovedToDLQ int      `json:"moved_to_dlq"`
	Errors     []string `json:"errors,omitempty"`
}
