package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/mailpilot-backend/internal/api/middleware"
	"github.com/welldanyogia/mailpilot-backend/internal/api/response"
	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"github.com/welldanyogia/mailpilot-backend/internal/services"
)

// ActivityHandler serves the owner's activity feed
type ActivityHandler struct {
	activity services.ActivityService
}

// NewActivityHandler creates a new ActivityHandler
func NewActivityHandler(activity services.ActivityService) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

// List handles GET /api/activity
func (h *ActivityHandler) List(c echo.Context) error {
	limit, offset := pagination(c)

	records, total, err := h.activity.List(c.Request().Context(), middleware.OwnerID(c),
		models.ActivityType(c.QueryParam("type")), limit, offset)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Paginated(c, records, total, limit, offset)
}
