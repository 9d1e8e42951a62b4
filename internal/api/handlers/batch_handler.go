package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/mailpilot-backend/internal/api/middleware"
	"github.com/welldanyogia/mailpilot-backend/internal/api/response"
	apperrors "github.com/welldanyogia/mailpilot-backend/internal/errors"
	"github.com/welldanyogia/mailpilot-backend/internal/services"
)

// BatchHandler handles batch drafting HTTP requests
type BatchHandler struct {
	jobs services.BatchJobManager
}

// NewBatchHandler creates a new BatchHandler
func NewBatchHandler(jobs services.BatchJobManager) *BatchHandler {
	return &BatchHandler{jobs: jobs}
}

// BatchRequest is the body of POST /api/batch-drafts
type BatchRequest struct {
	MessageIDs   []uint `json:"message_ids"`
	Instructions string `json:"instructions"`
}

// Submit handles POST /api/batch-drafts. The job runs in the background;
// progress is pushed over /ws and readable from Status.
func (h *BatchHandler) Submit(c echo.Context) error {
	var req BatchRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if len(req.Instructions) > maxInstructionsLength {
		return response.Error(c, apperrors.NewValidationError("instructions", "must be at most 2000 characters"))
	}

	job, err := h.jobs.Submit(c.Request().Context(), middleware.OwnerID(c), req.MessageIDs, req.Instructions)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Accepted(c, job)
}

// Status handles GET /api/batch-drafts/:id
func (h *BatchHandler) Status(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return response.BadRequest(c, "invalid job ID")
	}

	job, err := h.jobs.Status(c.Request().Context(), middleware.OwnerID(c), id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, job)
}

// List handles GET /api/batch-drafts
func (h *BatchHandler) List(c echo.Context) error {
	limit, offset := pagination(c)

	jobs, total, err := h.jobs.List(c.Request().Context(), middleware.OwnerID(c), limit, offset)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Paginated(c, jobs, total, limit, offset)
}
