package handlers

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/mailpilot-backend/internal/api/middleware"
	"github.com/welldanyogia/mailpilot-backend/internal/api/response"
	apperrors "github.com/welldanyogia/mailpilot-backend/internal/errors"
	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"github.com/welldanyogia/mailpilot-backend/internal/repository"
	"github.com/welldanyogia/mailpilot-backend/internal/services"
)

// DraftHandler handles draft review HTTP requests
type DraftHandler struct {
	drafts services.DraftService
}

// NewDraftHandler creates a new DraftHandler
func NewDraftHandler(drafts services.DraftService) *DraftHandler {
	return &DraftHandler{drafts: drafts}
}

// EditDraftRequest is the body of PATCH /api/drafts/:id. Omitted fields are kept.
type EditDraftRequest struct {
	To      []string `json:"to"`
	Cc      []string `json:"cc"`
	Subject *string  `json:"subject"`
	Body    *string  `json:"body_text"`
}

// RegenerateRequest is the body of POST /api/drafts/:id/regenerate
type RegenerateRequest struct {
	Instructions string `json:"instructions"`
}

var draftStatuses = map[string]models.DraftStatus{
	string(models.DraftPending):  models.DraftPending,
	string(models.DraftApproved): models.DraftApproved,
	string(models.DraftRejected): models.DraftRejected,
	string(models.DraftSent):     models.DraftSent,
	string(models.DraftAutoSent): models.DraftAutoSent,
}

// List handles GET /api/drafts
func (h *DraftHandler) List(c echo.Context) error {
	var filter repository.DraftFilter
	if raw := c.QueryParam("status"); raw != "" {
		status, ok := draftStatuses[raw]
		if !ok {
			return response.BadRequest(c, "invalid status filter")
		}
		filter.Status = status
	}
	if raw := c.QueryParam("message_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return response.BadRequest(c, "invalid message_id filter")
		}
		filter.MessageID = uint(id)
	}
	limit, offset := pagination(c)

	drafts, total, err := h.drafts.List(c.Request().Context(), middleware.OwnerID(c), filter, limit, offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, drafts, total, limit, offset)
}

// Get handles GET /api/drafts/:id
func (h *DraftHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return response.BadRequest(c, "invalid draft ID")
	}

	draft, err := h.drafts.Get(c.Request().Context(), middleware.OwnerID(c), id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, draft)
}

// Edit handles PATCH /api/drafts/:id
func (h *DraftHandler) Edit(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return response.BadRequest(c, "invalid draft ID")
	}

	var req EditDraftRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	draft, err := h.drafts.Edit(c.Request().Context(), middleware.OwnerID(c), id, services.DraftEdit{
		To:      req.To,
		Cc:      req.Cc,
		Subject: req.Subject,
		Body:    req.Body,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, draft)
}

// Approve handles POST /api/drafts/:id/approve
func (h *DraftHandler) Approve(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return response.BadRequest(c, "invalid draft ID")
	}

	draft, err := h.drafts.Approve(c.Request().Context(), middleware.OwnerID(c), id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.SuccessWithMessage(c, draft, "draft sent")
}

// Reject handles POST /api/drafts/:id/reject
func (h *DraftHandler) Reject(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return response.BadRequest(c, "invalid draft ID")
	}

	draft, err := h.drafts.Reject(c.Request().Context(), middleware.OwnerID(c), id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, draft)
}

// Regenerate handles POST /api/drafts/:id/regenerate
func (h *DraftHandler) Regenerate(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return response.BadRequest(c, "invalid draft ID")
	}

	var req RegenerateRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if len(req.Instructions) > maxInstructionsLength {
		return response.Error(c, apperrors.NewValidationError("instructions", "must be at most 2000 characters"))
	}

	draft, err := h.drafts.Regenerate(c.Request().Context(), middleware.OwnerID(c), id, req.Instructions)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, draft)
}
