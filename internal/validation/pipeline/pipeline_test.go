package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docgate/internal/platform/config"
	"docgate/internal/validation/authenticity"
	"docgate/internal/validation/models"
	"docgate/internal/validation/ownermatch"
	"docgate/internal/validation/store"
	dErrors "docgate/pkg/domain-errors"
	"docgate/pkg/requestcontext"
)

// pngFixture is a minimal valid PNG header followed by padding, enough for the
// format sniffer to accept image/png.
func pngFixture() []byte {
	data := make([]byte, 512)
	copy(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A})
	return data
}

type fakeFetcher struct {
	ref        models.DocumentRef
	data       []byte
	resolveErr error
	fetchErr   error
}

func (f *fakeFetcher) Resolve(_ context.Context, _ uuid.UUID) (models.DocumentRef, error) {
	if f.resolveErr != nil {
		return models.DocumentRef{}, f.resolveErr
	}
	return f.ref, nil
}

func (f *fakeFetcher) Fetch(_ context.Context, _ models.DocumentRef) ([]byte, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.data, nil
}

type fakeClassifier struct {
	result models.Classification
	err    error
}

func (c *fakeClassifier) Classify(_ context.Context, _ []byte, _, _ string) (models.Classification, error) {
	if c.err != nil {
		return models.Classification{}, c.err
	}
	return c.result, nil
}

type fakeRoster struct{ employees []models.Employee }

func (r *fakeRoster) ListEmployees(_ context.Context, _ uuid.UUID) ([]models.Employee, error) {
	return r.employees, nil
}

type fakeRequests struct{ requested string }

func (r *fakeRequests) RequestedType(_ context.Context, _ uuid.UUID) (string, error) {
	return r.requested, nil
}

type fakeOrgConfig struct{ thresholds models.Thresholds }

func (c *fakeOrgConfig) AutoApprovalThresholds(_ context.Context, _ uuid.UUID) (models.Thresholds, error) {
	return c.thresholds, nil
}

type fakeDirectory struct {
	statuses map[uuid.UUID]string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{statuses: map[uuid.UUID]string{}}
}

func (d *fakeDirectory) Resolve(_ context.Context, _ uuid.UUID) (models.DocumentRef, error) {
	return models.DocumentRef{}, errors.New("not used")
}

func (d *fakeDirectory) SaveCredential(_ context.Context, _ uuid.UUID, _ string) error {
	return nil
}

func (d *fakeDirectory) SetDocumentStatus(_ context.Context, documentID uuid.UUID, status string) error {
	d.statuses[documentID] = status
	return nil
}

type capturingPublisher struct {
	published []*models.DocumentValidation
	err       error
}

func (p *capturingPublisher) PublishValidated(_ context.Context, v *models.DocumentValidation) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, v)
	return nil
}

type fixture struct {
	pipeline    *Pipeline
	fetcher     *fakeFetcher
	classifier  *fakeClassifier
	directory   *fakeDirectory
	validations *store.InMemoryValidationStore
	documentID  uuid.UUID
	employee    models.Employee
	now         time.Time
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// newFixture wires a pipeline whose happy path auto-approves: roster match by
// sender email and exact name, valid PNG, far-off expiry, matching request.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	documentID := uuid.New()
	employee := models.Employee{
		ID:       uuid.New(),
		FullName: "Jane Smith",
		Email:    "jane.smith@example.com",
		DOB:      date(1990, time.May, 4),
	}

	f := &fixture{
		documentID:  documentID,
		employee:    employee,
		now:         now,
		directory:   newFakeDirectory(),
		validations: store.NewInMemory(),
		fetcher: &fakeFetcher{
			ref: models.DocumentRef{
				DocumentID:  documentID,
				OrgID:       uuid.New(),
				FileName:    "passport.png",
				MimeType:    "image/png",
				SenderEmail: employee.Email,
			},
			data: pngFixture(),
		},
		classifier: &fakeClassifier{
			result: models.Classification{
				DocumentType: "passport",
				Confidence:   0.85,
				FullName:     "Jane Smith",
				DateOfBirth:  employee.DOB,
				ExpiryDate:   date(2030, time.January, 1),
				IssueDate:    date(2020, time.January, 1),
			},
		},
	}

	p, err := New(Deps{
		Fetcher:      f.fetcher,
		Classifier:   f.classifier,
		Matcher:      ownermatch.New(),
		Authenticity: authenticity.New(authenticity.NewInMemoryHashIndex()),
		Roster:       &fakeRoster{employees: []models.Employee{employee}},
		Requests:     &fakeRequests{requested: "passport"},
		OrgConfig:    &fakeOrgConfig{thresholds: models.DefaultThresholds()},
		Directory:    f.directory,
		Validations:  f.validations,
	}, stageTimeouts(), opts...)
	require.NoError(t, err)
	f.pipeline = p
	return f
}

func stageTimeouts() config.StageTimeouts {
	return config.StageTimeouts{
		Fetch:    20 * time.Second,
		Classify: 30 * time.Second,
		Persist:  5 * time.Second,
		Job:      90 * time.Second,
	}
}

func (f *fixture) run(t *testing.T) (*models.DocumentValidation, error) {
	t.Helper()
	ctx := requestcontext.WithTime(context.Background(), f.now)
	return f.pipeline.Run(ctx, f.documentID)
}

func TestPipeline_Run(t *testing.T) {
	t.Run("clean document auto-approves", func(t *testing.T) {
		f := newFixture(t)

		v, err := f.run(t)
		require.NoError(t, err)

		assert.Equal(t, models.StatusVerified, v.OverallStatus)
		assert.True(t, v.CanAutoApprove)
		assert.False(t, v.RequiresAdminReview)
		assert.Equal(t, models.PriorityLow, v.ReviewPriority)
		assert.Equal(t, "passport", v.DocumentType)
		require.NotNil(t, v.MatchedEmployeeID)
		assert.Equal(t, f.employee.ID, *v.MatchedEmployeeID)
		assert.True(t, v.DOBMatch)
		assert.True(t, v.MatchesRequestType)
		assert.Equal(t, models.ExpiryLater, v.ExpiryStatus)
		assert.False(t, v.IsDuplicate)

		assert.Equal(t, statusVerified, f.directory.statuses[f.documentID])

		stored, err := f.validations.GetByDocument(context.Background(), f.documentID)
		require.NoError(t, err)
		assert.Equal(t, v.OverallStatus, stored.OverallStatus)
	})

	t.Run("expired document is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.classifier.result.ExpiryDate = date(2025, time.December, 31)

		v, err := f.run(t)
		require.NoError(t, err)

		assert.Equal(t, models.StatusRejected, v.OverallStatus)
		assert.False(t, v.CanAutoApprove)
		assert.True(t, v.RequiresAdminReview)
		assert.Equal(t, models.Expired, v.ExpiryStatus)
		assert.Equal(t, statusRejected, f.directory.statuses[f.documentID])
	})

	t.Run("expiring soon is flagged but still auto-approvable", func(t *testing.T) {
		f := newFixture(t)
		f.classifier.result.ExpiryDate = date(2026, time.April, 1)

		v, err := f.run(t)
		require.NoError(t, err)

		assert.Equal(t, models.StatusVerified, v.OverallStatus)
		assert.True(t, v.CanAutoApprove)
		assert.Equal(t, models.ExpirySoon, v.ExpiryStatus)
		assert.Equal(t, models.PriorityMedium, v.ReviewPriority)
	})

	t.Run("type mismatch is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.classifier.result.DocumentType = "visa"

		v, err := f.run(t)
		require.NoError(t, err)

		assert.Equal(t, models.StatusRejected, v.OverallStatus)
		assert.False(t, v.MatchesRequestType)
	})

	t.Run("unknown sender falls back to name match", func(t *testing.T) {
		f := newFixture(t)
		f.fetcher.ref.SenderEmail = "someone.else@example.com"

		v, err := f.run(t)
		require.NoError(t, err)

		require.NotNil(t, v.MatchedEmployeeID)
		assert.Equal(t, f.employee.ID, *v.MatchedEmployeeID)
		assert.Less(t, v.OwnerMatchConfidence, 1.0)
	})

	t.Run("rerun overwrites the previous outcome", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.run(t)
		require.NoError(t, err)

		f.classifier.result.ExpiryDate = date(2025, time.December, 31)
		v2, err := f.run(t)
		require.NoError(t, err)

		assert.Equal(t, 1, f.validations.Len())
		stored, err := f.validations.GetByDocument(context.Background(), f.documentID)
		require.NoError(t, err)
		assert.Equal(t, v2.OverallStatus, stored.OverallStatus)
		assert.Equal(t, models.StatusRejected, stored.OverallStatus)
	})

	t.Run("idempotent rerun produces the same row", func(t *testing.T) {
		f := newFixture(t)

		v1, err := f.run(t)
		require.NoError(t, err)
		v2, err := f.run(t)
		require.NoError(t, err)

		assert.Equal(t, 1, f.validations.Len())
		assert.Equal(t, v1.OverallStatus, v2.OverallStatus)
		assert.Equal(t, v1.OwnerMatchConfidence, v2.OwnerMatchConfidence)
		assert.Equal(t, v1.AuthenticityScore, v2.AuthenticityScore)
	})

	t.Run("fetch failure parks the document for review", func(t *testing.T) {
		f := newFixture(t)
		f.fetcher.fetchErr = dErrors.New(dErrors.CodeFetch, "bucket unavailable")

		_, err := f.run(t)
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeFetch, dErrors.CodeOf(err))

		assert.Equal(t, statusNeedsReview, f.directory.statuses[f.documentID])
		stored, storeErr := f.validations.GetByDocument(context.Background(), f.documentID)
		require.NoError(t, storeErr)
		assert.Equal(t, models.StatusNeedsReview, stored.OverallStatus)
		assert.True(t, stored.RequiresAdminReview)
		assert.Equal(t, string(dErrors.CodeFetch), stored.Metadata["error_code"])
	})

	t.Run("classifier failure surfaces the error", func(t *testing.T) {
		f := newFixture(t)
		f.classifier.err = dErrors.New(dErrors.CodeClassification, "model unreachable")

		_, err := f.run(t)
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeClassification, dErrors.CodeOf(err))
	})

	t.Run("publishes a decision event", func(t *testing.T) {
		pub := &capturingPublisher{}
		f := newFixture(t, WithEventPublisher(pub))

		v, err := f.run(t)
		require.NoError(t, err)

		require.Len(t, pub.published, 1)
		assert.Equal(t, v.DocumentID, pub.published[0].DocumentID)
	})

	t.Run("publish failure does not fail the run", func(t *testing.T) {
		pub := &capturingPublisher{err: errors.New("broker down")}
		f := newFixture(t, WithEventPublisher(pub))

		v, err := f.run(t)
		require.NoError(t, err)
		assert.Equal(t, models.StatusVerified, v.OverallStatus)
	})
}

func TestPipeline_New(t *testing.T) {
	t.Run("rejects missing collaborators", func(t *testing.T) {
		_, err := New(Deps{}, stageTimeouts())
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeConfig, dErrors.CodeOf(err))
	})
}
