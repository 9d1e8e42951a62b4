package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/welldanyogia/mailpilot-backend/internal/errors"
)

const (
	classifyTemperature = 0.3
	classifyMaxTokens   = 200
	generateMaxTokens   = 1000
)

// Options configures a Client
type Options struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// Client is a ResponderModel backed by an OpenAI-compatible chat completions
// endpoint such as OpenRouter.
type Client struct {
	apiKey       string
	baseURL      string
	defaultModel string
	timeout      time.Duration
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewClient creates a new chat completions client
func NewClient(opts Options, logger *slog.Logger) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		apiKey:       opts.APIKey,
		baseURL:      strings.TrimSuffix(opts.BaseURL, "/"),
		defaultModel: opts.DefaultModel,
		timeout:      opts.Timeout,
		httpClient:   httpClient,
		logger:       logger,
	}
}

// ChatMessage represents a message in a chat conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a chat completion request
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

// ChatResponse represents a chat completion response
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Classify asks the model whether a message needs a reply. An answer without
// a verdict is an error, never an implicit "no".
func (c *Client) Classify(ctx context.Context, req ClassifyRequest) (Classification, error) {
	content, _, err := c.complete(ctx, ChatRequest{
		Model:       c.defaultModel,
		Messages:    []ChatMessage{{Role: "user", Content: buildClassifyPrompt(req)}},
		MaxTokens:   classifyMaxTokens,
		Temperature: classifyTemperature,
	})
	if err != nil {
		return Classification{}, err
	}

	result, ok := parseClassification(content)
	if !ok {
		return Classification{}, fmt.Errorf("%w: classification missing verdict", apperrors.ErrModelUnavailable)
	}
	if result.Reason == "" {
		result.Reason = "no reason given"
	}
	return result, nil
}

// Generate writes a candidate reply
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (Completion, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	content, servedBy, err := c.complete(ctx, ChatRequest{
		Model: model,
		Messages: []ChatMessage{
			{Role: "system", Content: buildSystemPrompt(req)},
			{Role: "user", Content: buildUserPrompt(req)},
		},
		MaxTokens:   generateMaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return Completion{}, err
	}
	if strings.TrimSpace(content) == "" {
		return Completion{}, fmt.Errorf("%w: empty completion", apperrors.ErrModelUnavailable)
	}

	out := parseCompletion(content)
	out.Model = model
	if servedBy != "" {
		out.Model = servedBy
	}
	return out, nil
}

// complete sends one chat completion request and returns the first choice
func (c *Client) complete(ctx context.Context, chat ChatRequest) (string, string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(chat)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("failed to build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", "", fmt.Errorf("%w: after %s", apperrors.ErrModelTimeout, time.Since(start).Round(time.Millisecond))
		}
		return "", "", fmt.Errorf("%w: %v", apperrors.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", "", fmt.Errorf("%w: reading response", apperrors.ErrModelTimeout)
		}
		return "", "", fmt.Errorf("%w: %v", apperrors.ErrModelUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Model request failed",
			slog.String("model", chat.Model),
			slog.Int("status", resp.StatusCode),
		)
		return "", "", fmt.Errorf("%w: status %d", apperrors.ErrModelUnavailable, resp.StatusCode)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", "", fmt.Errorf("%w: invalid response: %v", apperrors.ErrModelUnavailable, err)
	}
	if chatResp.Error != nil {
		return "", "", fmt.Errorf("%w: %s", apperrors.ErrModelUnavailable, chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", "", fmt.Errorf("%w: no choices returned", apperrors.ErrModelUnavailable)
	}

	c.logger.Debug("Model request completed",
		slog.String("model", chat.Model),
		slog.Duration("duration", time.Since(start)),
	)
	return chatResp.Choices[0].Message.Content, chatResp.Model, nil
}
