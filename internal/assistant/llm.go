package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/danielolaszy/prism/internal/config"
	"github.com/danielolaszy/prism/internal/logging"
	"github.com/danielolaszy/prism/pkg/telemetry"
)

// ErrModelUnavailable is returned when the language model call fails.
var ErrModelUnavailable = errors.New("language model unavailable")

// StubReply is returned when no API key is configured.
const StubReply = "(pretend AI reply)"

// ChatMessage is a single prompt message.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is one completion call.
type CompletionRequest struct {
	Messages []ChatMessage

	// JSON asks the model for a JSON object reply
	JSON bool
}

// Completer produces a completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// NewCompleter returns an OpenAI client, or a stub when no API key is set.
func NewCompleter(cfg config.LLMConfig) Completer {
	if cfg.APIKey == "" {
		logging.Warn("no language model api key configured, using stub replies")
		return StubCompleter{Reply: StubReply}
	}
	return NewOpenAIClient(cfg)
}

// StubCompleter always returns Reply.
type StubCompleter struct {
	Reply string
}

func (s StubCompleter) Complete(ctx context.Context, _ CompletionRequest) (string, error) {
	return s.Reply, ctx.Err()
}

// OpenAIClient calls the OpenAI chat completions API.
type OpenAIClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewOpenAIClient creates a client for cfg.
func NewOpenAIClient(cfg config.LLMConfig) *OpenAIClient {
	return &OpenAIClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends req and returns the first choice's content.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "llm.complete")
	defer span.End()
	start := time.Now()

	content, err := c.complete(ctx, req)
	telemetry.RecordLLMRequest(ctx, err != nil, time.Since(start))
	if err != nil {
		span.RecordError(err)
		logging.Error("language model call failed", "model", c.cfg.Model, "error", err)
		return "", err
	}

	logging.Debug("language model reply received",
		"model", c.cfg.Model,
		"json_mode", req.JSON,
		"content_length", len(content))
	return content, nil
}

func (c *OpenAIClient) complete(ctx context.Context, req CompletionRequest) (string, error) {
	body := chatRequest{
		Model:       c.cfg.Model,
		Messages:    req.Messages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
	if req.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: request failed: %w", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: status %d: %s", ErrModelUnavailable, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var apiResponse chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %w", ErrModelUnavailable, err)
	}
	if len(apiResponse.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrModelUnavailable)
	}

	return apiResponse.Choices[0].Message.Content, nil
}
