package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/mailpilot-backend/internal/api/middleware"
	"github.com/welldanyogia/mailpilot-backend/internal/api/response"
	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"github.com/welldanyogia/mailpilot-backend/internal/services"
)

// RuleHandler handles automation rule HTTP requests
type RuleHandler struct {
	rules services.RuleService
}

// NewRuleHandler creates a new RuleHandler
func NewRuleHandler(rules services.RuleService) *RuleHandler {
	return &RuleHandler{rules: rules}
}

// ToggleRequest is the body of PATCH /api/rules/:id/toggle
type ToggleRequest struct {
	IsActive *bool `json:"is_active"`
}

// List handles GET /api/rules
func (h *RuleHandler) List(c echo.Context) error {
	rules, err := h.rules.List(c.Request().Context(), middleware.OwnerID(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, rules)
}

// Get handles GET /api/rules/:id
func (h *RuleHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return response.BadRequest(c, "invalid rule ID")
	}

	rule, err := h.rules.Get(c.Request().Context(), middleware.OwnerID(c), id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, rule)
}

// Create handles POST /api/rules
func (h *RuleHandler) Create(c echo.Context) error {
	var rule models.Rule
	if err := c.Bind(&rule); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	created, err := h.rules.Create(c.Request().Context(), middleware.OwnerID(c), &rule)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, created)
}

// Update handles PUT /api/rules/:id
func (h *RuleHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return response.BadRequest(c, "invalid rule ID")
	}

	var rule models.Rule
	if err := c.Bind(&rule); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	updated, err := h.rules.Update(c.Request().Context(), middleware.OwnerID(c), id, &rule)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, updated)
}

// Toggle handles PATCH /api/rules/:id/toggle
func (h *RuleHandler) Toggle(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return response.BadRequest(c, "invalid rule ID")
	}

	var req ToggleRequest
	if err := c.Bind(&req); err != nil || req.IsActive == nil {
		return response.BadRequest(c, "is_active is required")
	}

	rule, err := h.rules.Toggle(c.Request().Context(), middleware.OwnerID(c), id, *req.IsActive)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, rule)
}

// Delete handles DELETE /api/rules/:id
func (h *RuleHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return response.BadRequest(c, "invalid rule ID")
	}

	if err := h.rules.Delete(c.Request().Context(), middleware.OwnerID(c), id); err != nil {
		return response.Error(c, err)
	}
	return response.NoContent(c)
}

// Test handles POST /api/rules/test
func (h *RuleHandler) Test(c echo.Context) error {
	var in services.RuleTestInput
	if err := c.Bind(&in); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	result, err := h.rules.Test(c.Request().Context(), middleware.OwnerID(c), in)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, result)
}
