package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/mailpilot-backend/internal/api/middleware"
	"github.com/welldanyogia/mailpilot-backend/internal/api/response"
	"github.com/welldanyogia/mailpilot-backend/internal/services"
)

// MailboxHandler handles owner registration and mailbox connection requests
type MailboxHandler struct {
	mailbox services.MailboxService
}

// NewMailboxHandler creates a new MailboxHandler
func NewMailboxHandler(mailbox services.MailboxService) *MailboxHandler {
	return &MailboxHandler{mailbox: mailbox}
}

// RegisterOwnerRequest is the body of POST /api/owners
type RegisterOwnerRequest struct {
	Email string `json:"email"`
}

// ConnectRequest is the body of POST /api/mailbox/connect
type ConnectRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

// RegisterOwner handles POST /api/owners. It needs the API key but no owner.
func (h *MailboxHandler) RegisterOwner(c echo.Context) error {
	var req RegisterOwnerRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	owner, err := h.mailbox.RegisterOwner(c.Request().Context(), req.Email)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, owner)
}

// Status handles GET /api/mailbox
func (h *MailboxHandler) Status(c echo.Context) error {
	status, err := h.mailbox.Status(c.Request().Context(), middleware.OwnerID(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, status)
}

// Authorize handles GET /api/mailbox/authorize
func (h *MailboxHandler) Authorize(c echo.Context) error {
	start, err := h.mailbox.StartAuthorization(c.Request().Context(), middleware.OwnerID(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, start)
}

// Connect handles POST /api/mailbox/connect with the code and state from
// the OAuth redirect
func (h *MailboxHandler) Connect(c echo.Context) error {
	var req ConnectRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	status, err := h.mailbox.CompleteAuthorization(c.Request().Context(), middleware.OwnerID(c), req.Code, req.State)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, status)
}

// Disconnect handles DELETE /api/mailbox
func (h *MailboxHandler) Disconnect(c echo.Context) error {
	result, err := h.mailbox.Disconnect(c.Request().Context(), middleware.OwnerID(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.SuccessWithMessage(c, result, "mailbox disconnected")
}
