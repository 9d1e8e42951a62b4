package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/welldanyogia/mailpilot-backend/internal/llm"
	"github.com/welldanyogia/mailpilot-backend/internal/metrics"
	"github.com/welldanyogia/mailpilot-backend/internal/models"
)

// ResponseDecider decides whether an inbound message needs a reply
type ResponseDecider interface {
	// NeedsResponse returns the verdict and the model's reason. A model
	// failure is returned as an error, never as a "no".
	NeedsResponse(ctx context.Context, msg *models.Message) (bool, string, error)
}

// responseDecider implements ResponseDecider
type responseDecider struct {
	model  llm.ResponderModel
	logger *slog.Logger
}

// NewResponseDecider creates a new ResponseDecider instance
func NewResponseDecider(model llm.ResponderModel, logger *slog.Logger) ResponseDecider {
	return &responseDecider{
		model:  model,
		logger: logger,
	}
}

// NeedsResponse asks the model to classify the message
func (d *responseDecider) NeedsResponse(ctx context.Context, msg *models.Message) (bool, string, error) {
	body := msg.BodyText
	if body == "" {
		body = msg.Snippet
	}

	verdict, err := d.model.Classify(ctx, llm.ClassifyRequest{
		SenderEmail: msg.SenderEmail,
		SenderName:  msg.SenderName,
		Subject:     msg.Subject,
		Body:        body,
	})
	metrics.ModelRequestsTotal.WithLabelValues("classify", metrics.ResultLabel(err)).Inc()
	if err != nil {
		d.logger.Warn("needs-response classification failed",
			slog.Uint64("message_id", uint64(msg.ID)),
			slog.Any("error", err))
		return false, "", fmt.Errorf("failed to classify message %d: %w", msg.ID, err)
	}

	d.logger.Debug("message classified",
		slog.Uint64("message_id", uint64(msg.ID)),
		slog.Bool("requires_response", verdict.RequiresResponse))

	return verdict.RequiresResponse, verdict.Reason, nil
}
