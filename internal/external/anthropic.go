package external

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

	"equitylens/internal/config"
	"equitylens/internal/types"
)

// anthropicAPIBase is the default Anthropic API base URL.
// Overridable in tests via ModelConfig.BaseURL.
const anthropicAPIBase = "https://api.anthropic.com"

// anthropicVersion is the API version header required on every request.
const anthropicVersion = "2023-06-01"

// AnthropicClient calls the Anthropic Messages API to generate report text.
// Requests are routed through BaseClient for circuit breaking and error
// mapping, but retries are disabled: a single generation runs up to two
// minutes, and a retried call would double the user-visible latency while the
// quota slot is held.
type AnthropicClient struct {
	base   *BaseClient
	cfg    config.ModelConfig
	apiURL string
	logger *slog.Logger
}

// NewAnthropicClient creates a client from the model configuration. The
// httpClient timeout should match cfg.Timeout.
func NewAnthropicClient(httpClient *http.Client, cfg config.ModelConfig, logger *slog.Logger, opts ...BaseClientOption) *AnthropicClient {
	if logger == nil {
		logger = slog.Default()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = anthropicAPIBase
	}

	base := NewBaseClient(
		httpClient,
		"anthropic",
		RetryPolicy{
			MaxRetries: 0,
			MinWait:    time.Second,
			MaxWait:    time.Second,
		},
		"EquityLens/1.0",
		opts...,
	)

	return &AnthropicClient{
		base:   base,
		cfg:    cfg,
		apiURL: strings.TrimSuffix(baseURL, "/") + "/v1/messages",
		logger: logger,
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
}

type anthropicErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateReport sends the prompt as a single user message and returns the
// first text block of the model's reply.
func (c *AnthropicClient) GenerateReport(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(anthropicRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode model request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build model request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey.Reveal())
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.base.Do(req)
	if err != nil {
		return "", c.wrapModelError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.handleErrorResponse(resp)
	}

	var parsed anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamModel, "failed to decode model response", err)
	}

	for _, block := range parsed.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}

	return "", types.NewAppError(types.ErrCodeUpstreamModel, "model response contained no text content", nil)
}

// handleErrorResponse reads a non-200 model API response and maps it to a
// types.AppError.
func (c *AnthropicClient) handleErrorResponse(resp *http.Response) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamModel,
			fmt.Sprintf("model API returned status %d and response body was unreadable", resp.StatusCode),
			readErr,
		)
	}

	var apiErr anthropicErrorResponse
	if jsonErr := json.Unmarshal(body, &apiErr); jsonErr != nil || apiErr.Error.Message == "" {
		return types.NewAppError(
			types.ErrCodeUpstreamModel,
			fmt.Sprintf("model API returned status %d", resp.StatusCode),
			nil,
		)
	}

	c.logger.Warn("model API error",
		slog.Int("status", resp.StatusCode),
		slog.String("type", apiErr.Error.Type),
	)

	return types.NewAppError(
		types.ErrCodeUpstreamModel,
		fmt.Sprintf("model API error: %s", apiErr.Error.Message),
		nil,
	)
}

// wrapModelError normalizes BaseClient transport errors to the model error
// code while preserving rate-limit mapping.
func (c *AnthropicClient) wrapModelError(err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		if appErr.Code == types.ErrCodeUpstreamRateLimited {
			return appErr
		}
		return types.NewAppError(types.ErrCodeUpstreamModel, "model request failed", appErr)
	}
	return types.NewAppError(types.ErrCodeUpstreamModel, "model request failed", err)
}
