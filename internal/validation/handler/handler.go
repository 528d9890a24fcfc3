// Package handler wires the validation queue endpoints to the worker.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"docgate/internal/validation/models"
	dErrors "docgate/pkg/domain-errors"
	"docgate/pkg/platform/httputil"
	"docgate/pkg/platform/sentinel"
	"docgate/pkg/requestcontext"
)

// Service defines the queue operations the endpoints expose.
type Service interface {
	Enqueue(ctx context.Context, documentID uuid.UUID) (*models.ValidationJob, error)
	ProcessBatch(ctx context.Context, batchSize int) (models.BatchSummary, error)
	ListDeadLetter(ctx context.Context, limit int) ([]*models.ValidationJob, error)
	RequeueDeadLetter(ctx context.Context, jobID uuid.UUID) error
}

// Handler exposes validation queue operations over HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a validation handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts validation endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/validations/{documentID}", h.HandleTrigger)
	r.Post("/validations/process", h.HandleProcess)
	r.Get("/validations/dead-letter", h.HandleListDeadLetter)
	r.Post("/validations/dead-letter/{jobID}/requeue", h.HandleRequeue)
}

// TriggerResponse acknowledges a validation request.
type TriggerResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HandleTrigger handles POST /validations/{documentID} requests.
func (h *Handler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	documentID, err := uuid.Parse(chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid document id"))
		return
	}

	job, err := h.service.Enqueue(ctx, documentID)
	if err != nil {
		// A live job for the same document makes the trigger a no-op.
		if errors.Is(err, sentinel.ErrConflict) || dErrors.CodeOf(err) == dErrors.CodeConflict {
			httputil.WriteJSON(w, http.StatusOK, TriggerResponse{
				Success: true,
				Message: "validation already queued for this document",
			})
			return
		}
		h.logger.ErrorContext(ctx, "enqueue validation failed",
			"request_id", requestID,
			"document_id", documentID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "validation queued",
		"request_id", requestID,
		"document_id", documentID,
		"job_id", job.ID,
	)
	httputil.WriteJSON(w, http.StatusAccepted, TriggerResponse{
		Success: true,
		Message: "validation queued",
	})
}

// ProcessRequest selects how many due jobs one invocation may claim.
type ProcessRequest struct {
	BatchSize int `json:"batch_size"`
}

// HandleProcess handles POST /validations/process requests.
func (h *Handler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	var batchSize int
	if r.ContentLength != 0 {
		req, ok := httputil.DecodeAndPrepare[ProcessRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
		if req.BatchSize < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "batch_size must not be negative"))
			return
		}
		batchSize = req.BatchSize
	}

	summary, err := h.service.ProcessBatch(ctx, batchSize)
	if err != nil {
		h.logger.ErrorContext(ctx, "batch processing failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "batch processed",
		"request_id", requestID,
		"processed", summary.Processed,
		"completed", summary.Completed,
		"moved_to_dlq", summary.MovedToDLQ,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, summary)
}

// JobView is the wire form of a queued job.
type JobView struct {
	ID           uuid.UUID      `json:"id"`
	DocumentID   uuid.UUID      `json:"document_id"`
	Status       string         `json:"status"`
	Attempt      int            `json:"attempt"`
	MaxAttempts  int            `json:"max_attempts"`
	NextRunAt    time.Time      `json:"next_run_at"`
	ErrorMessage string         `json:"error_message,omitempty"`
	ErrorDetails map[string]any `json:"error_details,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ListDeadLetterResponse wraps the DLQ listing.
type ListDeadLetterResponse struct {
	Jobs []JobView `json:"jobs"`
}

// HandleListDeadLetter handles GET /validations/dead-letter requests.
func (h *Handler) HandleListDeadLetter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobs, err := h.service.ListDeadLetter(ctx, 50)
	if err != nil {
		h.logger.ErrorContext(ctx, "list dead letter failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, fromJob(job))
	}
	httputil.WriteJSON(w, http.StatusOK, ListDeadLetterResponse{Jobs: views})
}

// HandleRequeue handles POST /validations/dead-letter/{jobID}/requeue requests.
func (h *Handler) HandleRequeue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid job id"))
		return
	}

	if err := h.service.RequeueDeadLetter(ctx, jobID); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "job not found"))
		case errors.Is(err, sentinel.ErrInvalidState):
			httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "job is not in the dead letter queue"))
		default:
			h.logger.ErrorContext(ctx, "requeue dead letter failed",
				"request_id", requestID,
				"job_id", jobID,
				"error", err,
			)
			httputil.WriteError(w, err)
		}
		return
	}

	h.logger.InfoContext(ctx, "dead letter job requeued",
		"request_id", requestID,
		"job_id", jobID,
	)
	httputil.WriteJSON(w, http.StatusOK, TriggerResponse{
		Success: true,
		Message: "job requeued",
	})
}

func fromJob(job *models.ValidationJob) JobView {
	return JobView{
		ID:           job.ID,
		DocumentID:   job.DocumentID,
		Status:       string(job.Status),
		Attempt:      job.Attempt,
		MaxAttempts:  job.MaxAttempts,
		NextRunAt:    job.NextRunAt,
		ErrorMessage: job.ErrorMessage,
		ErrorDetails: job.ErrorDetails,
		UpdatedAt:    job.UpdatedAt,
	}
}
