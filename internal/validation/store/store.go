// Package store persists DocumentValidation outcomes.
package store

import (
	"context"

	"github.com/google/uuid"

	"docgate/internal/validation/models"
)

// ValidationStore holds at most one DocumentValidation row per document.
type ValidationStore interface {
	// Upsert inserts the validation or overwrites the existing row for the
	// same document.
	Upsert(ctx context.Context, v *models.DocumentValidation) error
	// GetByDocument returns sentinel.ErrNotFound when the document has never
	// been validated.
	GetByDocument(ctx context.Context, documentID uuid.UUID) (*models.DocumentValidation, error)
}
