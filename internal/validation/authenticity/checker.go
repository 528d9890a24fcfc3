// Package authenticity validates file-format consistency and detects
// duplicate submissions via content hashing.
package authenticity

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"docgate/internal/validation/models"
	"docgate/internal/validation/ports"
)

const (
	baseScore       = 0.70
	formatValidBump = 0.15
	sizeBump        = 0.05
	mismatchPenalty = 0.20

	// plausibleSize is the smallest byte count at which a scan or photo of a
	// real identity document is believable.
	plausibleSize = 16 * 1024
)

// signature binds a MIME type to its expected leading bytes.
type signature struct {
	prefix []byte
	offset int
}

var signatures = map[string][]signature{
	"application/pdf": {{prefix: []byte("%PDF-")}},
	"image/jpeg":      {{prefix: []byte{0xFF, 0xD8, 0xFF}}},
	"image/png":       {{prefix: []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}}},
	"image/gif":       {{prefix: []byte("GIF87a")}, {prefix: []byte("GIF89a")}},
	"image/webp":      {{prefix: []byte("WEBP"), offset: 8}},
	"image/bmp":       {{prefix: []byte("BM")}},
}

// Checker scores byte-level authenticity and flags duplicates.
type Checker struct {
	index ports.HashIndex
}

// New constructs a Checker backed by the given duplicate-hash index.
func New(index ports.HashIndex) *Checker {
	return &Checker{index: index}
}

// Check validates the magic signature against the declared MIME type,
// computes the content hash, and looks the hash up in the organization's
// index. A format mismatch or a detected duplicate forces human review.
func (c *Checker) Check(ctx context.Context, orgID, documentID uuid.UUID, mimeType string, data []byte) (models.Authenticity, error) {
	result := models.Authenticity{
		Score:        baseScore,
		FormatValid:  formatMatches(mimeType, data),
		ImageQuality: qualityEstimate(mimeType, len(data)),
	}

	if result.FormatValid {
		result.Score += formatValidBump
		if len(data) >= plausibleSize {
			result.Score += sizeBump
		}
	} else {
		result.Score -= mismatchPenalty
		result.RequiresReview = true
	}

	sum := sha256.Sum256(data)
	result.ContentHash = hex.EncodeToString(sum[:])

	existing, err := c.index.Put(ctx, orgID, result.ContentHash, documentID)
	if err != nil {
		return result, fmt.Errorf("duplicate lookup: %w", err)
	}
	if existing != nil && *existing != documentID {
		result.IsDuplicate = true
		result.DuplicateOf = existing
		result.RequiresReview = true
	}

	return result, nil
}

// formatMatches reports whether the leading bytes agree with the declared
// MIME type. Unknown MIME types pass: absence of a known signature is not
// evidence of tampering.
func formatMatches(mimeType string, data []byte) bool {
	sigs, known := signatures[normalizeMime(mimeType)]
	if !known {
		return true
	}
	for _, sig := range sigs {
		end := sig.offset + len(sig.prefix)
		if len(data) >= end && bytes.Equal(data[sig.offset:end], sig.prefix) {
			return true
		}
	}
	return false
}

func normalizeMime(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "image/jpg" {
		return "image/jpeg"
	}
	return mimeType
}

// qualityEstimate is a coarse size-based proxy until a real sharpness check
// exists. Tiny images cannot carry a legible document.
func qualityEstimate(mimeType string, size int) float64 {
	if !strings.HasPrefix(normalizeMime(mimeType), "image/") {
		return 0.8
	}
	switch {
	case size >= 100*1024:
		return 0.9
	case size >= plausibleSize:
		return 0.7
	default:
		return 0.4
	}
}
