// Package pipeline orchestrates one document's validation run: fetch the
// bytes, classify, match the owner, analyze expiry, check authenticity and
// request compliance, decide, persist.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"docgate/internal/platform/config"
	"docgate/internal/validation/compliance"
	"docgate/internal/validation/decision"
	"docgate/internal/validation/expiry"
	"docgate/internal/validation/metrics"
	"docgate/internal/validation/models"
	"docgate/internal/validation/ownermatch"
	"docgate/internal/validation/ports"
	"docgate/internal/validation/store"
	dErrors "docgate/pkg/domain-errors"
	"docgate/pkg/requestcontext"
)

// Document statuses written back to the directory after a run.
const (
	statusVerified    = "verified"
	statusRejected    = "rejected"
	statusNeedsReview = "needs_review"
)

// Fetcher resolves a document and downloads its bytes.
type Fetcher interface {
	Resolve(ctx context.Context, documentID uuid.UUID) (models.DocumentRef, error)
	Fetch(ctx context.Context, ref models.DocumentRef) ([]byte, error)
}

// Classifier extracts the document type and structured fields.
type Classifier interface {
	Classify(ctx context.Context, data []byte, filename, mimeType string) (models.Classification, error)
}

// AuthenticityChecker scores format consistency and detects duplicates.
type AuthenticityChecker interface {
	Check(ctx context.Context, orgID, documentID uuid.UUID, mimeType string, data []byte) (models.Authenticity, error)
}

// Pipeline runs the full validation sequence for one document.
type Pipeline struct {
	fetcher      Fetcher
	classifier   Classifier
	matcher      *ownermatch.Matcher
	authenticity AuthenticityChecker
	roster       ports.Roster
	requests     ports.Requests
	orgConfig    ports.OrgConfig
	directory    ports.DocumentDirectory
	validations  store.ValidationStore
	events       ports.EventPublisher
	stages       config.StageTimeouts
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithEventPublisher enables decision event publishing. Publish failures are
// logged and never fail the run.
func WithEventPublisher(events ports.EventPublisher) Option {
	return func(p *Pipeline) { p.events = events }
}

// Deps are the required collaborators.
type Deps struct {
	Fetcher      Fetcher
	Classifier   Classifier
	Matcher      *ownermatch.Matcher
	Authenticity AuthenticityChecker
	Roster       ports.Roster
	Requests     ports.Requests
	OrgConfig    ports.OrgConfig
	Directory    ports.DocumentDirectory
	Validations  store.ValidationStore
}

// New constructs a Pipeline, rejecting missing collaborators up front so a
// wiring mistake fails at startup instead of on the first job.
func New(deps Deps, stages config.StageTimeouts, opts ...Option) (*Pipeline, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, dErrors.New(dErrors.CodeConfig, "pipeline: fetcher is required")
	case deps.Classifier == nil:
		return nil, dErrors.New(dErrors.CodeConfig, "pipeline: classifier is required")
	case deps.Matcher == nil:
		return nil, dErrors.New(dErrors.CodeConfig, "pipeline: owner matcher is required")
	case deps.Authenticity == nil:
		return nil, dErrors.New(dErrors.CodeConfig, "pipeline: authenticity checker is required")
	case deps.Roster == nil:
		return nil, dErrors.New(dErrors.CodeConfig, "pipeline: roster is required")
	case deps.Requests == nil:
		return nil, dErrors.New(dErrors.CodeConfig, "pipeline: requests lookup is required")
	case deps.OrgConfig == nil:
		return nil, dErrors.New(dErrors.CodeConfig, "pipeline: org config is required")
	case deps.Directory == nil:
		return nil, dErrors.New(dErrors.CodeConfig, "pipeline: document directory is required")
	case deps.Validations == nil:
		return nil, dErrors.New(dErrors.CodeConfig, "pipeline: validation store is required")
	}

	p := &Pipeline{
		fetcher:      deps.Fetcher,
		classifier:   deps.Classifier,
		matcher:      deps.Matcher,
		authenticity: deps.Authenticity,
		roster:       deps.Roster,
		requests:     deps.Requests,
		orgConfig:    deps.OrgConfig,
		directory:    deps.Directory,
		validations:  deps.Validations,
		stages:       stages,
		logger:       slog.Default(),
		tracer:       otel.Tracer("docgate/pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run validates one document end to end and returns the persisted outcome.
// Runs are idempotent: a rerun overwrites the previous row for the document.
// On an internal failure the document is parked in needs_review and the error
// is returned for the caller's retry bookkeeping.
func (p *Pipeline) Run(ctx context.Context, documentID uuid.UUID) (*models.DocumentValidation, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.Run",
		trace.WithAttributes(attribute.String("document_id", documentID.String())))
	defer span.End()

	started := time.Now()
	v, err := p.run(ctx, documentID)
	if err != nil {
		p.logger.ErrorContext(ctx, "validation run failed",
			"document_id", documentID,
			"error", err,
		)
		p.parkForReview(ctx, documentID, err)
		return nil, err
	}

	if p.metrics != nil {
		p.metrics.PipelineDuration.Observe(time.Since(started).Seconds())
		switch v.OverallStatus {
		case models.StatusVerified:
			p.metrics.AutoApproved.Inc()
		case models.StatusRejected:
			p.metrics.Rejected.Inc()
		default:
			p.metrics.NeedsReview.Inc()
		}
	}
	p.logger.InfoContext(ctx, "validation run completed",
		"document_id", documentID,
		"overall_status", v.OverallStatus,
		"can_auto_approve", v.CanAutoApprove,
		"review_priority", v.ReviewPriority,
	)
	return v, nil
}

func (p *Pipeline) run(ctx context.Context, documentID uuid.UUID) (*models.DocumentValidation, error) {
	now := requestcontext.Now(ctx)

	ref, data, err := p.fetch(ctx, documentID)
	if err != nil {
		return nil, err
	}

	classification, err := p.classify(ctx, ref, data)
	if err != nil {
		return nil, err
	}

	owner, err := p.matchOwner(ctx, ref, classification)
	if err != nil {
		return nil, err
	}

	expiryInfo := expiry.Analyze(classification.ExpiryDate, classification.IssueDate, now)

	auth, err := p.checkAuthenticity(ctx, ref, data)
	if err != nil {
		return nil, err
	}

	comp, err := p.checkCompliance(ctx, documentID, classification)
	if err != nil {
		return nil, err
	}

	thresholds, err := p.orgConfig.AutoApprovalThresholds(ctx, ref.OrgID)
	if err != nil {
		p.logger.WarnContext(ctx, "threshold lookup failed, using defaults",
			"org_id", ref.OrgID, "error", err)
		thresholds = models.DefaultThresholds()
	}

	d := decision.Decide(decision.Signals{
		Owner:        owner,
		Expiry:       expiryInfo,
		Authenticity: auth,
		Compliance:   comp,
	}, thresholds)

	v := assemble(documentID, classification, owner, expiryInfo, auth, comp, d, now)

	if err := p.persist(ctx, v); err != nil {
		return nil, err
	}
	if err := p.directory.SetDocumentStatus(ctx, documentID, documentStatus(d)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "set document status")
	}
	p.publish(ctx, v)
	return v, nil
}

func (p *Pipeline) fetch(ctx context.Context, documentID uuid.UUID) (models.DocumentRef, []byte, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.fetch")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, p.stages.Fetch)
	defer cancel()

	ref, err := p.fetcher.Resolve(ctx, documentID)
	if err != nil {
		return models.DocumentRef{}, nil, err
	}
	data, err := p.fetcher.Fetch(ctx, ref)
	if err != nil {
		return models.DocumentRef{}, nil, err
	}
	return ref, data, nil
}

func (p *Pipeline) classify(ctx context.Context, ref models.DocumentRef, data []byte) (models.Classification, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.classify")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, p.stages.Classify)
	defer cancel()

	return p.classifier.Classify(ctx, data, ref.FileName, ref.MimeType)
}

func (p *Pipeline) matchOwner(ctx context.Context, ref models.DocumentRef, c models.Classification) (models.OwnerMatch, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.match_owner")
	defer span.End()

	roster, err := p.roster.ListEmployees(ctx, ref.OrgID)
	if err != nil {
		return models.OwnerMatch{}, dErrors.Wrap(err, dErrors.CodePersistence, "list employees")
	}
	return p.matcher.Match(roster, ownermatch.Input{
		SenderEmail:  ref.SenderEmail,
		DocumentName: c.FullName,
		DocumentDOB:  c.DateOfBirth,
	}), nil
}

func (p *Pipeline) checkAuthenticity(ctx context.Context, ref models.DocumentRef, data []byte) (models.Authenticity, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.authenticity")
	defer span.End()

	return p.authenticity.Check(ctx, ref.OrgID, ref.DocumentID, ref.MimeType, data)
}

func (p *Pipeline) checkCompliance(ctx context.Context, documentID uuid.UUID, c models.Classification) (models.Compliance, error) {
	requested, err := p.requests.RequestedType(ctx, documentID)
	if err != nil {
		return models.Compliance{}, dErrors.Wrap(err, dErrors.CodePersistence, "look up requested type")
	}
	return compliance.Check(requested, c.DocumentType), nil
}

func (p *Pipeline) persist(ctx context.Context, v *models.DocumentValidation) error {
	ctx, span := p.tracer.Start(ctx, "pipeline.persist")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, p.stages.Persist)
	defer cancel()

	if err := p.validations.Upsert(ctx, v); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "upsert validation")
	}
	return nil
}

func (p *Pipeline) publish(ctx context.Context, v *models.DocumentValidation) {
	if p.events == nil {
		return
	}
	if err := p.events.PublishValidated(ctx, v); err != nil {
		p.logger.WarnContext(ctx, "publish validated event failed",
			"document_id", v.DocumentID, "error", err)
	}
}

// parkForReview marks the document for human attention after an internal
// failure. The park itself is best effort.
func (p *Pipeline) parkForReview(ctx context.Context, documentID uuid.UUID, runErr error) {
	now := requestcontext.Now(ctx)
	v := &models.DocumentValidation{
		DocumentID:          documentID,
		OverallStatus:       models.StatusNeedsReview,
		RequiresAdminReview: true,
		ReviewPriority:      models.PriorityHigh,
		Metadata: map[string]any{
			"error":      runErr.Error(),
			"error_code": string(dErrors.CodeOf(runErr)),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.validations.Upsert(ctx, v); err != nil {
		p.logger.ErrorContext(ctx, "record failed run", "document_id", documentID, "error", err)
	}
	if err := p.directory.SetDocumentStatus(ctx, documentID, statusNeedsReview); err != nil {
		p.logger.ErrorContext(ctx, "park document for review", "document_id", documentID, "error", err)
	}
}

func documentStatus(d models.Decision) string {
	switch d.OverallStatus {
	case models.StatusVerified:
		return statusVerified
	case models.StatusRejected:
		return statusRejected
	default:
		return statusNeedsReview
	}
}

func assemble(
	documentID uuid.UUID,
	c models.Classification,
	owner models.OwnerMatch,
	exp models.ExpiryInfo,
	auth models.Authenticity,
	comp models.Compliance,
	d models.Decision,
	now time.Time,
) *models.DocumentValidation {
	return &models.DocumentValidation{
		DocumentID: documentID,

		DocumentType:           c.DocumentType,
		DocumentTypeConfidence: c.Confidence,
		IssuingCountry:         c.IssuingCountry,
		DocumentNumber:         c.DocumentNumber,

		MatchedEmployeeID:    owner.MatchedEmployeeID,
		NameMatchScore:       owner.NameScore,
		DOBMatch:             owner.DOBMatch,
		OwnerMatchConfidence: owner.Confidence,

		ExpiryDate:      exp.ExpiryDate,
		IssueDate:       exp.IssueDate,
		ExpiryStatus:    exp.Status,
		DaysUntilExpiry: exp.DaysUntilExpiry,

		AuthenticityScore:     auth.Score,
		ImageQualityScore:     auth.ImageQuality,
		IsDuplicate:           auth.IsDuplicate,
		DuplicateOfDocumentID: auth.DuplicateOf,

		MatchesRequestType:     comp.MatchesRequestType,
		RequestComplianceScore: comp.Score,

		OverallStatus:       d.OverallStatus,
		CanAutoApprove:      d.CanAutoApprove,
		RequiresAdminReview: d.RequiresAdminReview,
		ReviewPriority:      d.ReviewPriority,

		Metadata: map[string]any{
			"classification": c,
			"owner_match":    owner,
			"expiry":         exp,
			"authenticity":   auth,
			"compliance":     comp,
			"issues":         d.Issues,
		},

		CreatedAt: now,
		UpdatedAt: now,
	}
}
