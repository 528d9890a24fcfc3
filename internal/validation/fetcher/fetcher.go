// Package fetcher resolves a document's storage location and downloads its
// bytes, handling one credential refresh on an authorization failure.
package fetcher

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"docgate/internal/validation/models"
	"docgate/internal/validation/ports"
	dErrors "docgate/pkg/domain-errors"
	"docgate/pkg/platform/sentinel"
	"docgate/pkg/secretbox"
)

// Fetcher downloads document bytes through the storage collaborator.
type Fetcher struct {
	directory ports.DocumentDirectory
	storage   ports.Storage
	box       *secretbox.Box
	logger    *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = logger }
}

// New constructs a Fetcher.
func New(directory ports.DocumentDirectory, storage ports.Storage, box *secretbox.Box, opts ...Option) (*Fetcher, error) {
	if directory == nil || storage == nil || box == nil {
		return nil, errors.New("fetcher: directory, storage, and box are required")
	}
	f := &Fetcher{directory: directory, storage: storage, box: box, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Resolve looks up the document's storage reference.
func (f *Fetcher) Resolve(ctx context.Context, documentID uuid.UUID) (models.DocumentRef, error) {
	ref, err := f.directory.Resolve(ctx, documentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.DocumentRef{}, dErrors.Wrap(err, dErrors.CodeNotFound, "document not found")
		}
		return models.DocumentRef{}, dErrors.Wrap(err, dErrors.CodeFetch, "resolve document")
	}
	return ref, nil
}

// Fetch downloads the document's bytes. On an authorization failure it
// refreshes the provider credential exactly once, persists the re-sealed
// credential, and retries; a second failure propagates to the worker's retry
// path rather than looping here.
func (f *Fetcher) Fetch(ctx context.Context, ref models.DocumentRef) ([]byte, error) {
	provider := ref.Provider

	credential, err := f.box.Open(provider.Credential)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeFetch, "open stored credential")
	}
	provider.Credential = credential

	data, err := f.storage.Download(ctx, provider, ref.StoragePath)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, sentinel.ErrUnauthorized) {
		return nil, dErrors.Wrap(err, dErrors.CodeFetch, "download document")
	}

	f.logger.InfoContext(ctx, "credential rejected, refreshing",
		"document_id", ref.DocumentID,
		"connection_id", provider.ConnectionID,
		"provider", provider.Kind,
	)

	refreshed, err := f.storage.RefreshCredential(ctx, provider)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeFetch, "refresh credential")
	}

	sealed, err := f.box.Seal(refreshed)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeFetch, "seal refreshed credential")
	}
	if err := f.directory.SaveCredential(ctx, provider.ConnectionID, sealed); err != nil {
		// The refreshed credential still works for this attempt; losing the
		// write only costs a refresh on the next run.
		f.logger.WarnContext(ctx, "persist refreshed credential failed",
			"connection_id", provider.ConnectionID, "error", err)
	}

	provider.Credential = refreshed
	data, err = f.storage.Download(ctx, provider, ref.StoragePath)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeFetch, "download after credential refresh")
	}
	return data, nil
}
