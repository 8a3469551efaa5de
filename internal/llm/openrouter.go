package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vendora-ai/vendora/internal/httpkit"
)

// OpenRouterClient talks to an OpenAI-compatible chat-completions
// endpoint (OpenRouter by default).
type OpenRouterClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenRouterClient creates a chat-completion client for the given
// endpoint. baseURL should include the API prefix (e.g.
// "https://openrouter.ai/api/v1").
func NewOpenRouterClient(baseURL, apiKey string, logger *slog.Logger) *OpenRouterClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenRouterClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		// Tool-heavy completions on large models can take a while.
		httpClient: httpkit.NewClient(httpkit.WithTimeout(2 * time.Minute)),
		logger:     logger,
	}
}

// Chat implements Client.
func (c *OpenRouterClient) Chat(ctx context.Context, model string, messages []Message, tools []Tool) (*ChatResponse, error) {
	req := ChatRequest{
		Model:    model,
		Messages: messages,
		Tools:    tools,
	}
	if len(tools) > 0 {
		req.ToolChoice = "auto"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrUnavailable, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	c.logger.Debug("chat completion request",
		"model", model,
		"messages", len(messages),
		"tools", len(tools),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp)
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: response carried no choices", ErrUnavailable)
	}

	msg := chatResp.Assistant()
	c.logger.Debug("chat completion response",
		"model", chatResp.Model,
		"tool_calls", len(msg.ToolCalls),
		"total_tokens", chatResp.Usage.TotalTokens,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	return &chatResp, nil
}

// parseAPIError decodes the provider's error envelope, falling back to
// the raw body when the shape is unexpected.
func parseAPIError(resp *http.Response) error {
	body := httpkit.ReadErrorBody(resp.Body, 4096)

	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err == nil && envelope.Error.Message != "" {
		return &APIError{
			Status:  resp.StatusCode,
			Type:    envelope.Error.Type,
			Message: envelope.Error.Message,
		}
	}

	return &APIError{
		Status:  resp.StatusCode,
		Message: body,
	}
}
