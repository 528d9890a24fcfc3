package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"docgate/internal/validation/models"
	"docgate/pkg/platform/sentinel"
)

// maxDocumentBytes caps a single download. Identity documents are photos or
// small PDFs; anything larger is a misrouted upload.
const maxDocumentBytes = 32 << 20

// HTTPStorage talks to the storage gateway that fronts the configured
// provider (bucket, OneDrive, Drive). The gateway speaks plain HTTP: GET for
// bytes, POST /credentials/refresh for a new token.
type HTTPStorage struct {
	client *http.Client
	logger *slog.Logger
}

// StorageOption configures HTTPStorage.
type StorageOption func(*HTTPStorage)

func WithHTTPClient(client *http.Client) StorageOption {
	return func(s *HTTPStorage) { s.client = client }
}

func WithStorageLogger(logger *slog.Logger) StorageOption {
	return func(s *HTTPStorage) { s.logger = logger }
}

// NewHTTPStorage constructs the storage client.
func NewHTTPStorage(opts ...StorageOption) *HTTPStorage {
	s := &HTTPStorage{
		client: &http.Client{Timeout: 30 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Download fetches the document bytes. A 401 or 403 maps to
// sentinel.ErrUnauthorized so the fetcher can refresh the credential.
func (s *HTTPStorage) Download(ctx context.Context, provider models.ProviderConfig, path string) ([]byte, error) {
	url := strings.TrimSuffix(provider.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+provider.Credential)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage: download %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("storage: download %s: status %d: %w", path, resp.StatusCode, sentinel.ErrUnauthorized)
	case http.StatusNotFound:
		return nil, fmt.Errorf("storage: download %s: %w", path, sentinel.ErrNotFound)
	default:
		return nil, fmt.Errorf("storage: download %s: unexpected status %d", path, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("storage: read body: %w", err)
	}
	return data, nil
}

type refreshRequest struct {
	ConnectionID string `json:"connection_id"`
	Kind         string `json:"kind"`
}

type refreshResponse struct {
	Credential string `json:"credential"`
}

// RefreshCredential asks the gateway for a new token for the connection.
func (s *HTTPStorage) RefreshCredential(ctx context.Context, provider models.ProviderConfig) (string, error) {
	payload, err := json.Marshal(refreshRequest{
		ConnectionID: provider.ConnectionID.String(),
		Kind:         provider.Kind,
	})
	if err != nil {
		return "", fmt.Errorf("storage: marshal refresh request: %w", err)
	}

	url := strings.TrimSuffix(provider.BaseURL, "/") + "/credentials/refresh"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(payload)))
	if err != nil {
		return "", fmt.Errorf("storage: build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage: refresh credential: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("storage: refresh credential: status %d: %s", resp.StatusCode, string(body))
	}

	var out refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("storage: decode refresh response: %w", err)
	}
	if out.Credential == "" {
		return "", fmt.Errorf("storage: refresh response missing credential")
	}

	s.logger.InfoContext(ctx, "storage credential refreshed",
		"connection_id", provider.ConnectionID,
		"provider", provider.Kind,
	)
	return out.Credential, nil
}
