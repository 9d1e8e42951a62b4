// Package llm talks to the language model that classifies inbound mail and
// writes candidate replies.
package llm

import (
	"context"
)

// ClassifyRequest is the part of a message the needs-response check reads
type ClassifyRequest struct {
	SenderEmail string
	SenderName  string
	Subject     string
	Body        string
}

// Classification is the model's verdict on whether a message needs a reply
type Classification struct {
	RequiresResponse bool
	Reason           string
}

// GenerateRequest carries everything needed to write one reply.
// Instructions are appended to SystemPrompt, never substituted for it.
type GenerateRequest struct {
	Model         string
	Temperature   float64
	SystemPrompt  string
	Instructions  []string
	Signature     string
	SenderEmail   string
	SenderName    string
	Subject       string
	Body          string
	ThreadHistory []string
}

// Completion is a generated reply. Unscored is set when the model did not
// report a usable confidence; Confidence is then zero.
type Completion struct {
	Body       string
	Reasoning  string
	Confidence float64
	Unscored   bool
	Model      string
}

// ResponderModel is the language model used by the pipeline.
// Failures are ErrModelUnavailable or ErrModelTimeout from internal/errors.
type ResponderModel interface {
	Classify(ctx context.Context, req ClassifyRequest) (Classification, error)
	Generate(ctx context.Context, req GenerateRequest) (Completion, error)
}
