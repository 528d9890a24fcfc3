// Package classifier sends document bytes to an external vision- or
// text-capable model and returns a structured classification, falling back to
// filename heuristics when the call fails.
package classifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"docgate/internal/platform/config"
	"docgate/internal/validation/models"
	dErrors "docgate/pkg/domain-errors"
)

// Fixed confidence heuristic per classification source.
const (
	visionConfidence   = 0.85
	textConfidence     = 0.70
	fallbackConfidence = 0.30
)

const systemPrompt = "You classify identity and compliance documents. " +
	"Given a document, identify its type (passport, drivers license, national id, visa, " +
	"residence permit, work permit, birth certificate, other), the issuing country (ISO name), " +
	"the document number, the holder's printed full name, and any printed dates. " +
	"Dates must be YYYY-MM-DD. Use null for anything not present. Return ONLY JSON matching the schema."

// Classifier calls the external model over chat/completions.
type Classifier struct {
	cfg    config.Classifier
	client *http.Client
	schema *jsonschema.Schema
	logger *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) { c.logger = logger }
}

// WithHTTPClient overrides the HTTP client (tests point it at a fake server).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Classifier) { c.client = client }
}

// New constructs a Classifier. The API key is checked at classify time so a
// misconfigured deployment surfaces a configuration error, not a retry storm.
func New(cfg config.Classifier, opts ...Option) (*Classifier, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	c := &Classifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		schema: schema,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Classify returns a structured guess about the document. Model failures
// degrade to the filename fallback; only a missing API key is an error.
func (c *Classifier) Classify(ctx context.Context, data []byte, filename, mimeType string) (models.Classification, error) {
	if c.cfg.APIKey == "" {
		return models.Classification{}, dErrors.New(dErrors.CodeConfig, "model API key is not configured")
	}

	start := time.Now()
	result, err := c.callModel(ctx, data, filename, mimeType)
	if err != nil {
		c.logger.WarnContext(ctx, "classification failed, using filename fallback",
			"filename", filename,
			"mime_type", mimeType,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return FromFilename(filename), nil
	}

	c.logger.InfoContext(ctx, "document classified",
		"document_type", result.DocumentType,
		"source", result.Source,
		"confidence", result.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (c *Classifier) callModel(ctx context.Context, data []byte, filename, mimeType string) (models.Classification, error) {
	vision := strings.HasPrefix(strings.ToLower(mimeType), "image/")

	model := c.cfg.TextModel
	if vision {
		model = c.cfg.VisionModel
	}

	body := map[string]any{
		"model":           model,
		"temperature":     0,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt},
			{"role": "system", "content": "JSON Schema:\n" + extractionSchema},
			{"role": "user", "content": c.userContent(data, filename, mimeType, vision)},
		},
	}

	raw, err := c.post(ctx, body)
	if err != nil {
		return models.Classification{}, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return models.Classification{}, fmt.Errorf("decode model response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return models.Classification{}, errors.New("no choices in model response")
	}
	content := []byte(strings.TrimSpace(cc.Choices[0].Message.Content))

	var payload any
	if err := json.Unmarshal(content, &payload); err != nil {
		return models.Classification{}, fmt.Errorf("model returned non-JSON content: %w", err)
	}
	if err := c.schema.Validate(payload); err != nil {
		return models.Classification{}, fmt.Errorf("model output failed schema validation: %w", err)
	}

	var fields struct {
		DocumentType   string  `json:"document_type"`
		IssuingCountry *string `json:"issuing_country"`
		DocumentNumber *string `json:"document_number"`
		FullName       *string `json:"full_name"`
		DateOfBirth    *string `json:"date_of_birth"`
		IssueDate      *string `json:"issue_date"`
		ExpiryDate     *string `json:"expiry_date"`
	}
	if err := json.Unmarshal(content, &fields); err != nil {
		return models.Classification{}, fmt.Errorf("decode model fields: %w", err)
	}

	result := models.Classification{
		DocumentType:   fields.DocumentType,
		IssuingCountry: deref(fields.IssuingCountry),
		DocumentNumber: deref(fields.DocumentNumber),
		FullName:       deref(fields.FullName),
		DateOfBirth:    parseDate(fields.DateOfBirth),
		IssueDate:      parseDate(fields.IssueDate),
		ExpiryDate:     parseDate(fields.ExpiryDate),
		Model:          model,
	}
	if vision {
		result.Source = "vision"
		result.Confidence = visionConfidence
	} else {
		result.Source = "text"
		result.Confidence = textConfidence
	}
	return result, nil
}

// userContent builds the user message: a data URL for images, best-effort
// extracted text otherwise. An empty text body is acceptable; the filename
// hint still gives the model something to work with.
func (c *Classifier) userContent(data []byte, filename, mimeType string, vision bool) any {
	if vision {
		url := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
		return []map[string]any{
			{"type": "text", "text": "Classify this document. Filename: " + filename},
			{"type": "image_url", "image_url": map[string]any{"url": url}},
		}
	}
	text := extractText(data)
	return fmt.Sprintf("Classify this document.\nFilename: %s\nExtracted text:\n%s", filename, text)
}

func (c *Classifier) post(ctx context.Context, body map[string]any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read model response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}
	return raw, nil
}

// extractText is the advisory text path for non-image documents. There is no
// OCR engine here; printable ASCII runs are enough for text-bearing formats
// and an empty result is an accepted input.
func extractText(data []byte) string {
	const limit = 4096
	var b strings.Builder
	lastSpace := true
	for _, c := range data {
		if b.Len() >= limit {
			break
		}
		if c >= 0x20 && c < 0x7F {
			b.WriteByte(c)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

func parseDate(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil
	}
	return &t
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
