package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	termai "github.com/termai/termai"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
	anthropicMessagesPath   = "/messages"
)

// anthropicClient talks to the Anthropic messages API.
type anthropicClient struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

func newAnthropic(cfg *termai.Config) *anthropicClient {
	baseURL := cfg.Anthropic.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	return &anthropicClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      termai.ResolveAPIKey(cfg, termai.ProviderAnthropic),
		model:       cfg.Anthropic.Model,
		maxTokens:   cfg.Anthropic.MaxTokens,
		temperature: cfg.Anthropic.Temperature,
		client:      &http.Client{Timeout: cfg.RequestTimeout()},
	}
}

func (c *anthropicClient) Name() string { return termai.ProviderAnthropic }

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Error      *anthropicErrorDetail   `json:"error,omitempty"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Complete sends one messages request and returns the first text block.
func (c *anthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	reqBody := anthropicRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		System:      req.System,
		Messages: []anthropicMessage{
			{Role: "user", Content: req.Prompt},
		},
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	endpoint := c.baseURL + anthropicMessagesPath
	slog.Debug("calling anthropic API", "endpoint", endpoint, "model", c.model,
		"max_tokens", c.maxTokens, "temperature", c.temperature)

	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	slog.Debug("anthropic API responded", "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{StatusCode: resp.StatusCode, Message: apiErrorMessage(resp.StatusCode, body)}
	}

	var result anthropicResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w (body: %s)", err, string(body))
	}

	if result.Error != nil {
		return "", &APIError{Message: result.Error.Message}
	}

	for _, block := range result.Content {
		if block.Type == "text" {
			return strings.TrimSpace(block.Text), nil
		}
	}

	return "", fmt.Errorf("no text content in response")
}

// apiErrorMessage extracts the API's error message from a non-2xx body,
// falling back to the raw body. A 401 gets a key hint appended.
func apiErrorMessage(status int, body []byte) string {
	msg := strings.TrimSpace(string(body))

	var errResp struct {
		Error *anthropicErrorDetail `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}

	if status == http.StatusUnauthorized {
		msg += " (check that your API key is correct and has permissions)"
	}
	return msg
}
