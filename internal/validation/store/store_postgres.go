package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docgate/internal/validation/models"
	"docgate/pkg/platform/sentinel"
	"docgate/pkg/requestcontext"
)

// PostgresValidationStore persists validations in the document_validations
// table, one row per document.
type PostgresValidationStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresValidationStore {
	return &PostgresValidationStore{pool: pool}
}

func (s *PostgresValidationStore) Upsert(ctx context.Context, v *models.DocumentValidation) error {
	metadata, err := json.Marshal(v.Metadata)
	if err != nil {
		return fmt.Errorf("marshal validation metadata: %w", err)
	}

	now := requestcontext.Now(ctx)
	query := `
		INSERT INTO document_validations (
			document_id,
			document_type, document_type_confidence, issuing_country, document_number,
			matched_employee_id, name_match_score, dob_match, owner_match_confidence,
			expiry_date, issue_date, expiry_status, days_until_expiry,
			authenticity_score, image_quality_score, is_duplicate, duplicate_of_document_id,
			matches_request_type, request_compliance_score,
			overall_status, can_auto_approve, requires_admin_review, review_priority,
			metadata, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$25)
		ON CONFLICT (document_id) DO UPDATE SET
			document_type = EXCLUDED.document_type,
			document_type_confidence = EXCLUDED.document_type_confidence,
			issuing_country = EXCLUDED.issuing_country,
			document_number = EXCLUDED.document_number,
			matched_employee_id = EXCLUDED.matched_employee_id,
			name_match_score = EXCLUDED.name_match_score,
			dob_match = EXCLUDED.dob_match,
			owner_match_confidence = EXCLUDED.owner_match_confidence,
			expiry_date = EXCLUDED.expiry_date,
			issue_date = EXCLUDED.issue_date,
			expiry_status = EXCLUDED.expiry_status,
			days_until_expiry = EXCLUDED.days_until_expiry,
			authenticity_score = EXCLUDED.authenticity_score,
			image_quality_score = EXCLUDED.image_quality_score,
			is_duplicate = EXCLUDED.is_duplicate,
			duplicate_of_document_id = EXCLUDED.duplicate_of_document_id,
			matches_request_type = EXCLUDED.matches_request_type,
			request_compliance_score = EXCLUDED.request_compliance_score,
			overall_status = EXCLUDED.overall_status,
			can_auto_approve = EXCLUDED.can_auto_approve,
			requires_admin_review = EXCLUDED.requires_admin_review,
			review_priority = EXCLUDED.review_priority,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.pool.Exec(ctx, query,
		v.DocumentID,
		v.DocumentType, v.DocumentTypeConfidence, v.IssuingCountry, v.DocumentNumber,
		v.MatchedEmployeeID, v.NameMatchScore, v.DOBMatch, v.OwnerMatchConfidence,
		v.ExpiryDate, v.IssueDate, v.ExpiryStatus, v.DaysUntilExpiry,
		v.AuthenticityScore, v.ImageQualityScore, v.IsDuplicate, v.DuplicateOfDocumentID,
		v.MatchesRequestType, v.RequestComplianceScore,
		v.OverallStatus, v.CanAutoApprove, v.RequiresAdminReview, v.ReviewPriority,
		metadata, now,
	)
	if err != nil {
		return fmt.Errorf("upsert document validation: %w", err)
	}
	v.UpdatedAt = now
	return nil
}

func (s *PostgresValidationStore) GetByDocument(ctx context.Context, documentID uuid.UUID) (*models.DocumentValidation, error) {
	query := `
		SELECT document_id,
			document_type, document_type_confidence, issuing_country, document_number,
			matched_employee_id, name_match_score, dob_match, owner_match_confidence,
			expiry_date, issue_date, expiry_status, days_until_expiry,
			authenticity_score, image_quality_score, is_duplicate, duplicate_of_document_id,
			matches_request_type, request_compliance_score,
			overall_status, can_auto_approve, requires_admin_review, review_priority,
			metadata, created_at, updated_at
		FROM document_validations
		WHERE document_id = $1
	`
	var v models.DocumentValidation
	var metadata []byte
	err := s.pool.QueryRow(ctx, query, documentID).Scan(
		&v.DocumentID,
		&v.DocumentType, &v.DocumentTypeConfidence, &v.IssuingCountry, &v.DocumentNumber,
		&v.MatchedEmployeeID, &v.NameMatchScore, &v.DOBMatch, &v.OwnerMatchConfidence,
		&v.ExpiryDate, &v.IssueDate, &v.ExpiryStatus, &v.DaysUntilExpiry,
		&v.AuthenticityScore, &v.ImageQualityScore, &v.IsDuplicate, &v.DuplicateOfDocumentID,
		&v.MatchesRequestType, &v.RequestComplianceScore,
		&v.OverallStatus, &v.CanAutoApprove, &v.RequiresAdminReview, &v.ReviewPriority,
		&metadata, &v.CreatedAt, &v.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document validation: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &v.Metadata); err != nil {
			return nil, fmt.Errorf("decode validation metadata: %w", err)
		}
	}
	return &v, nil
}
