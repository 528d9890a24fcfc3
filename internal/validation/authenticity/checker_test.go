package authenticity

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pdfBytes  = append([]byte("%PDF-1.7\n"), make([]byte, 20*1024)...)
	jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 120*1024)...)
	pngBytes  = append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 20*1024)...)
)

func TestCheckFormatValidScores(t *testing.T) {
	checker := New(NewInMemoryHashIndex())
	ctx := context.Background()

	result, err := checker.Check(ctx, uuid.New(), uuid.New(), "application/pdf", pdfBytes)
	require.NoError(t, err)
	assert.True(t, result.FormatValid)
	assert.InDelta(t, 0.90, result.Score, 1e-9)
	assert.False(t, result.RequiresReview)
	assert.NotEmpty(t, result.ContentHash)
}

func TestCheckFormatMismatch(t *testing.T) {
	checker := New(NewInMemoryHashIndex())
	ctx := context.Background()

	// PNG bytes declared as JPEG.
	result, err := checker.Check(ctx, uuid.New(), uuid.New(), "image/jpeg", pngBytes)
	require.NoError(t, err)
	assert.False(t, result.FormatValid)
	assert.InDelta(t, 0.50, result.Score, 1e-9)
	assert.True(t, result.RequiresReview)
}

func TestCheckUnknownMimePasses(t *testing.T) {
	checker := New(NewInMemoryHashIndex())
	ctx := context.Background()

	result, err := checker.Check(ctx, uuid.New(), uuid.New(), "text/plain", []byte("hello"))
	require.NoError(t, err)
	assert.True(t, result.FormatValid)
}

func TestCheckTinyFileSkipsSizeBump(t *testing.T) {
	checker := New(NewInMemoryHashIndex())
	ctx := context.Background()

	result, err := checker.Check(ctx, uuid.New(), uuid.New(), "application/pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.True(t, result.FormatValid)
	assert.InDelta(t, 0.85, result.Score, 1e-9)
}

func TestCheckDuplicateDetection(t *testing.T) {
	checker := New(NewInMemoryHashIndex())
	ctx := context.Background()
	orgID := uuid.New()
	first, second := uuid.New(), uuid.New()

	original, err := checker.Check(ctx, orgID, first, "image/jpeg", jpegBytes)
	require.NoError(t, err)
	assert.False(t, original.IsDuplicate)

	dup, err := checker.Check(ctx, orgID, second, "image/jpeg", jpegBytes)
	require.NoError(t, err)
	assert.True(t, dup.IsDuplicate)
	require.NotNil(t, dup.DuplicateOf)
	assert.Equal(t, first, *dup.DuplicateOf)
	assert.True(t, dup.RequiresReview)
}

func TestCheckReprocessingSameDocumentIsNotDuplicate(t *testing.T) {
	checker := New(NewInMemoryHashIndex())
	ctx := context.Background()
	orgID := uuid.New()
	docID := uuid.New()

	_, err := checker.Check(ctx, orgID, docID, "image/jpeg", jpegBytes)
	require.NoError(t, err)

	again, err := checker.Check(ctx, orgID, docID, "image/jpeg", jpegBytes)
	require.NoError(t, err)
	assert.False(t, again.IsDuplicate)
}

func TestCheckDuplicateScopedPerOrganization(t *testing.T) {
	checker := New(NewInMemoryHashIndex())
	ctx := context.Background()

	_, err := checker.Check(ctx, uuid.New(), uuid.New(), "image/jpeg", jpegBytes)
	require.NoError(t, err)

	other, err := checker.Check(ctx, uuid.New(), uuid.New(), "image/jpeg", jpegBytes)
	require.NoError(t, err)
	assert.False(t, other.IsDuplicate)
}

func TestQualityEstimate(t *testing.T) {
	assert.InDelta(t, 0.9, qualityEstimate("image/jpeg", 200*1024), 1e-9)
	assert.InDelta(t, 0.7, qualityEstimate("image/png", 20*1024), 1e-9)
	assert.InDelta(t, 0.4, qualityEstimate("image/png", 1024), 1e-9)
	assert.InDelta(t, 0.8, qualityEstimate("application/pdf", 1024), 1e-9)
}

func TestNormalizeMime(t *testing.T) {
	assert.Equal(t, "image/jpeg", normalizeMime("image/jpg"))
	assert.Equal(t, "image/png", normalizeMime("IMAGE/PNG; charset=binary"))
}
