package services

import (
	"context"
	"log/slog"

	"github.com/welldanyogia/mailpilot-backend/internal/guardrails"
	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"github.com/welldanyogia/mailpilot-backend/internal/repository"
)

// checkReply runs the guardrails on composed content. Every known address in
// the cached thread counts as a participant.
func checkReply(ctx context.Context, messages repository.MessageRepository, logger *slog.Logger,
	msg *models.Message, content *DraftContent, recipients []string, cfg guardrails.Config) guardrails.Result {
	return guardrails.Check(guardrails.Input{
		Text:               content.Body,
		Recipients:         recipients,
		OriginalSender:     msg.SenderEmail,
		ThreadParticipants: threadParticipants(ctx, messages, logger, msg),
		Confidence:         content.Confidence,
		Unscored:           content.Unscored,
	}, cfg)
}

// threadParticipants collects every address seen in the cached thread
func threadParticipants(ctx context.Context, messages repository.MessageRepository, logger *slog.Logger, msg *models.Message) []string {
	participants := msg.Participants()
	if msg.ThreadID == "" || messages == nil {
		return participants
	}
	thread, err := messages.ListThread(ctx, msg.OwnerID, msg.ThreadID)
	if err != nil {
		logger.Warn("failed to load thread participants",
			slog.Uint64("message_id", uint64(msg.ID)),
			slog.Any("error", err))
		return participants
	}
	for i := range thread {
		participants = append(participants, thread[i].Participants()...)
	}
	return participants
}
