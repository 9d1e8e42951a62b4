package handlers

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/mailpilot-backend/internal/api/middleware"
	"github.com/welldanyogia/mailpilot-backend/internal/api/response"
	apperrors "github.com/welldanyogia/mailpilot-backend/internal/errors"
	"github.com/welldanyogia/mailpilot-backend/internal/repository"
	"github.com/welldanyogia/mailpilot-backend/internal/services"
)

// maxInstructionsLength caps ad hoc drafting instructions
const maxInstructionsLength = 2000

// MailboxPoller syncs one owner's mailbox and drains its backlog
type MailboxPoller interface {
	PollOwner(ctx context.Context, ownerID uint) (*services.SyncResult, error)
}

// MessageHandler handles message-related HTTP requests
type MessageHandler struct {
	messageRepo repository.MessageRepository
	poller      MailboxPoller
	processor   services.EmailProcessor
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(messageRepo repository.MessageRepository, poller MailboxPoller, processor services.EmailProcessor) *MessageHandler {
	return &MessageHandler{
		messageRepo: messageRepo,
		poller:      poller,
		processor:   processor,
	}
}

// DraftRequest is the body of POST /api/messages/:id/draft
type DraftRequest struct {
	Instructions string `json:"instructions"`
}

// List handles GET /api/messages
func (h *MessageHandler) List(c echo.Context) error {
	requiresResponse, ok := boolQuery(c, "requires_response")
	if !ok {
		return response.BadRequest(c, "invalid requires_response filter")
	}
	filter := repository.MessageFilter{
		UnreadOnly:       c.QueryParam("unread") == "true",
		UnprocessedOnly:  c.QueryParam("unprocessed") == "true",
		RequiresResponse: requiresResponse,
	}
	limit, offset := pagination(c)

	messages, total, err := h.messageRepo.List(c.Request().Context(), middleware.OwnerID(c), filter, limit, offset)
	if err != nil {
		return response.InternalError(c, "failed to list messages")
	}

	return response.Paginated(c, messages, total, limit, offset)
}

// Get handles GET /api/messages/:id
func (h *MessageHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return response.BadRequest(c, "invalid message ID")
	}
	ownerID := middleware.OwnerID(c)

	message, err := h.messageRepo.GetByID(c.Request().Context(), ownerID, id)
	if err != nil {
		if isRepoNotFound(err) {
			return response.NotFound(c, "message not found")
		}
		return response.InternalError(c, "failed to get message")
	}

	// Auto mark as read
	if !message.IsRead {
		_ = h.messageRepo.MarkAsRead(c.Request().Context(), ownerID, id)
		message.IsRead = true
	}

	return response.Success(c, message)
}

// Thread handles GET /api/messages/:id/thread
func (h *MessageHandler) Thread(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return response.BadRequest(c, "invalid message ID")
	}
	ownerID := middleware.OwnerID(c)

	message, err := h.messageRepo.GetByID(c.Request().Context(), ownerID, id)
	if err != nil {
		if isRepoNotFound(err) {
			return response.NotFound(c, "message not found")
		}
		return response.InternalError(c, "failed to get message")
	}

	thread, err := h.messageRepo.ListThread(c.Request().Context(), ownerID, message.ThreadID)
	if err != nil {
		return response.InternalError(c, "failed to load thread")
	}

	return response.Success(c, thread)
}

// Sync handles POST /api/messages/sync
func (h *MessageHandler) Sync(c echo.Context) error {
	result, err := h.poller.PollOwner(c.Request().Context(), middleware.OwnerID(c))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, result)
}

// Draft handles POST /api/messages/:id/draft, drafting a reply on demand.
// The draft always waits for review.
func (h *MessageHandler) Draft(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return response.BadRequest(c, "invalid message ID")
	}

	var req DraftRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if len(req.Instructions) > maxInstructionsLength {
		return response.Error(c, apperrors.NewValidationError("instructions", "must be at most 2000 characters"))
	}

	result, err := h.processor.Process(c.Request().Context(), middleware.OwnerID(c), id, services.ProcessOptions{
		Path:         services.PathOnDemand,
		Instructions: strings.TrimSpace(req.Instructions),
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, result)
}
