package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/mailpilot-backend/internal/api/middleware"
	"github.com/welldanyogia/mailpilot-backend/internal/api/response"
	apperrors "github.com/welldanyogia/mailpilot-backend/internal/errors"
	"github.com/welldanyogia/mailpilot-backend/internal/guardrails"
	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"github.com/welldanyogia/mailpilot-backend/internal/services"
)

// SettingsHandler handles settings and guardrail HTTP requests
type SettingsHandler struct {
	settings services.SettingsService
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(settings services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// GuardrailTestRequest is the body of POST /api/guardrails/test
type GuardrailTestRequest struct {
	Text               string   `json:"text"`
	Recipients         []string `json:"recipients"`
	OriginalSender     string   `json:"original_sender"`
	ThreadParticipants []string `json:"thread_participants"`
	Confidence         *float64 `json:"confidence"`
}

// GuardrailTestResponse lists every violation found
type GuardrailTestResponse struct {
	Passed                 bool                   `json:"passed"`
	Violations             []guardrails.Violation `json:"violations"`
	ShouldDowngradeToDraft bool                   `json:"should_downgrade_to_draft"`
}

// Get handles GET /api/settings
func (h *SettingsHandler) Get(c echo.Context) error {
	settings, err := h.settings.Get(c.Request().Context(), middleware.OwnerID(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, settings)
}

// Update handles PUT /api/settings
func (h *SettingsHandler) Update(c echo.Context) error {
	var settings models.UserSettings
	if err := c.Bind(&settings); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	updated, err := h.settings.Update(c.Request().Context(), middleware.OwnerID(c), &settings)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, updated)
}

// TestGuardrails handles POST /api/guardrails/test. A missing confidence
// means the text is judged on content alone.
func (h *SettingsHandler) TestGuardrails(c echo.Context) error {
	var req GuardrailTestRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if req.Text == "" {
		return response.Error(c, apperrors.NewValidationError("text", "is required"))
	}

	confidence := 1.0
	if req.Confidence != nil {
		confidence = *req.Confidence
	}
	recipients := req.Recipients
	if len(recipients) == 0 && req.OriginalSender != "" {
		recipients = []string{req.OriginalSender}
	}

	result, err := h.settings.CheckGuardrails(c.Request().Context(), middleware.OwnerID(c), guardrails.Input{
		Text:               req.Text,
		Recipients:         recipients,
		OriginalSender:     req.OriginalSender,
		ThreadParticipants: req.ThreadParticipants,
		Confidence:         confidence,
	})
	if err != nil {
		return response.Error(c, err)
	}

	violations := result.Violations
	if violations == nil {
		violations = []guardrails.Violation{}
	}
	return response.Success(c, GuardrailTestResponse{
		Passed:                 result.Passed,
		Violations:             violations,
		ShouldDowngradeToDraft: result.ShouldDowngrade(),
	})
}
