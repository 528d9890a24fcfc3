// Package ports declares the collaborator interfaces the validation pipeline
// depends on. The dashboard, email router, storage adapters, and OAuth flows
// live behind these; tests supply in-memory fakes.
package ports

import (
	"context"

	"github.com/google/uuid"

	"docgate/internal/validation/models"
)

// Storage downloads document bytes and refreshes provider credentials.
// Implementations wrap the bucket/OneDrive/Drive adapters. Download must
// return sentinel.ErrUnauthorized (possibly wrapped) when the provider
// rejects the credential, so the fetcher can refresh and retry once.
type Storage interface {
	Download(ctx context.Context, provider models.ProviderConfig, path string) ([]byte, error)
	RefreshCredential(ctx context.Context, provider models.ProviderConfig) (string, error)
}

// DocumentDirectory resolves documents to their storage location and writes
// back small facts the pipeline produces.
type DocumentDirectory interface {
	Resolve(ctx context.Context, documentID uuid.UUID) (models.DocumentRef, error)
	SaveCredential(ctx context.Context, connectionID uuid.UUID, sealed string) error
	SetDocumentStatus(ctx context.Context, documentID uuid.UUID, status string) error
}

// Roster lists an organization's employees for owner matching.
type Roster interface {
	ListEmployees(ctx context.Context, orgID uuid.UUID) ([]models.Employee, error)
}

// Requests looks up the document type the originating request asked for.
// An empty string means the document was unsolicited.
type Requests interface {
	RequestedType(ctx context.Context, documentID uuid.UUID) (string, error)
}

// OrgConfig supplies per-organization auto-approval thresholds.
type OrgConfig interface {
	AutoApprovalThresholds(ctx context.Context, orgID uuid.UUID) (models.Thresholds, error)
}

// HashIndex records content hashes per organization for duplicate detection.
// Put returns the document that already owns the hash, if any.
type HashIndex interface {
	Put(ctx context.Context, orgID uuid.UUID, hash string, documentID uuid.UUID) (existing *uuid.UUID, err error)
}

// EventPublisher emits decision events for downstream consumers. A nil
// publisher is valid and disables publishing.
type EventPublisher interface {
	PublishValidated(ctx context.Context, validation *models.DocumentValidation) error
}
