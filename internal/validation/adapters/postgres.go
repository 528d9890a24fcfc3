// Package adapters provides production implementations of the collaborator
// ports: the postgres-backed document directory, roster, request, and
// organization lookups, and the HTTP storage client.
package adapters

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docgate/internal/validation/models"
	"docgate/pkg/platform/sentinel"
	"docgate/pkg/requestcontext"
)

// PostgresDirectory reads the documents table the ingestion service writes.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

func (d *PostgresDirectory) Resolve(ctx context.Context, documentID uuid.UUID) (models.DocumentRef, error) {
	query := `
		SELECT d.id, d.org_id, d.file_name, d.mime_type, d.storage_path, d.sender_email,
			c.id, c.kind, c.base_url, c.credential
		FROM documents d
		JOIN storage_connections c ON c.id = d.connection_id
		WHERE d.id = $1
	`
	var ref models.DocumentRef
	err := d.pool.QueryRow(ctx, query, documentID).Scan(
		&ref.DocumentID, &ref.OrgID, &ref.FileName, &ref.MimeType, &ref.StoragePath, &ref.SenderEmail,
		&ref.Provider.ConnectionID, &ref.Provider.Kind, &ref.Provider.BaseURL, &ref.Provider.Credential,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DocumentRef{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.DocumentRef{}, fmt.Errorf("resolve document %s: %w", documentID, err)
	}
	return ref, nil
}

func (d *PostgresDirectory) SaveCredential(ctx context.Context, connectionID uuid.UUID, sealed string) error {
	tag, err := d.pool.Exec(ctx,
		`UPDATE storage_connections SET credential = $2, updated_at = $3 WHERE id = $1`,
		connectionID, sealed, requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("save credential %s: %w", connectionID, err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (d *PostgresDirectory) SetDocumentStatus(ctx context.Context, documentID uuid.UUID, status string) error {
	tag, err := d.pool.Exec(ctx,
		`UPDATE documents SET status = $2, updated_at = $3 WHERE id = $1`,
		documentID, status, requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("set document status %s: %w", documentID, err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// PostgresRoster lists employees for owner matching.
type PostgresRoster struct {
	pool *pgxpool.Pool
}

func NewPostgresRoster(pool *pgxpool.Pool) *PostgresRoster {
	return &PostgresRoster{pool: pool}
}

func (r *PostgresRoster) ListEmployees(ctx context.Context, orgID uuid.UUID) ([]models.Employee, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, full_name, email, dob FROM employees WHERE org_id = $1`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list employees for %s: %w", orgID, err)
	}
	defer rows.Close()

	var employees []models.Employee
	for rows.Next() {
		var e models.Employee
		if err := rows.Scan(&e.ID, &e.FullName, &e.Email, &e.DOB); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

// PostgresRequests maps a document to the type its request asked for.
type PostgresRequests struct {
	pool *pgxpool.Pool
}

func NewPostgresRequests(pool *pgxpool.Pool) *PostgresRequests {
	return &PostgresRequests{pool: pool}
}

// RequestedType returns "" for unsolicited documents.
func (r *PostgresRequests) RequestedType(ctx context.Context, documentID uuid.UUID) (string, error) {
	var requested string
	err := r.pool.QueryRow(ctx,
		`SELECT requested_type FROM document_requests WHERE document_id = $1`, documentID).
		Scan(&requested)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("requested type for %s: %w", documentID, err)
	}
	return requested, nil
}

// PostgresOrgConfig reads per-organization approval thresholds.
type PostgresOrgConfig struct {
	pool *pgxpool.Pool
}

func NewPostgresOrgConfig(pool *pgxpool.Pool) *PostgresOrgConfig {
	return &PostgresOrgConfig{pool: pool}
}

// AutoApprovalThresholds falls back to the defaults when the organization has
// no explicit configuration.
func (c *PostgresOrgConfig) AutoApprovalThresholds(ctx context.Context, orgID uuid.UUID) (models.Thresholds, error) {
	var t models.Thresholds
	err := c.pool.QueryRow(ctx,
		`SELECT min_owner_match, min_authenticity, min_compliance, allow_expired
		FROM organizations WHERE id = $1`, orgID).
		Scan(&t.MinOwnerMatch, &t.MinAuthenticity, &t.MinCompliance, &t.AllowExpired)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DefaultThresholds(), nil
	}
	if err != nil {
		return models.Thresholds{}, fmt.Errorf("thresholds for %s: %w", orgID, err)
	}
	return t, nil
}
