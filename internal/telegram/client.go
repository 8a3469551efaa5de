// Package telegram implements the Bot API channel: a long-polling
// client for inbound updates and a bridge that routes messages through
// the agent loop.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vendora-ai/vendora/internal/buildinfo"
	"github.com/vendora-ai/vendora/internal/httpkit"
)

// DefaultPollTimeout is the getUpdates long-poll timeout.
const DefaultPollTimeout = 30 * time.Second

// apiEnvelope is the Bot API response wrapper.
type apiEnvelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

// APIError is a Bot API level failure (ok=false).
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api error %d: %s", e.Code, e.Description)
}

// Client talks to the Telegram Bot API over HTTPS. Inbound updates are
// pushed to a channel by the poll loop; outbound calls are plain
// request-response.
type Client struct {
	apiBase     string // https://api.telegram.org
	token       string
	pollTimeout time.Duration
	httpClient  *http.Client
	logger      *slog.Logger

	updates chan *Update
	done    chan struct{} // closed when the poll loop exits
}

// NewClient creates a Bot API client. Call Start to begin polling.
func NewClient(apiBase, token string, pollTimeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	return &Client{
		apiBase:     apiBase,
		token:       token,
		pollTimeout: pollTimeout,
		// The client timeout must outlast the server-side long poll.
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(pollTimeout+30*time.Second),
			httpkit.WithUserAgent(buildinfo.UserAgent()),
		),
		logger:  logger,
		updates: make(chan *Update, 64),
		done:    make(chan struct{}),
	}
}

// Start launches the getUpdates poll loop. Must be called exactly once.
func (c *Client) Start(ctx context.Context) {
	go c.pollLoop(ctx)
}

// Updates returns the channel of inbound updates. The channel is
// closed when the poll loop exits.
func (c *Client) Updates() <-chan *Update {
	return c.updates
}

// Done is closed when the poll loop has exited.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) pollLoop(ctx context.Context) {
	defer close(c.done)
	defer close(c.updates)

	c.logger.Info("telegram poll loop started", "timeout", c.pollTimeout)

	var offset int64
	for {
		if ctx.Err() != nil {
			c.logger.Info("telegram poll loop stopping")
			return
		}

		batch, err := c.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("telegram poll loop stopping")
				return
			}
			c.logger.Warn("telegram getUpdates failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for i := range batch {
			upd := &batch[i]
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			select {
			case c.updates <- upd:
			default:
				c.logger.Warn("telegram update channel full, dropping update",
					"update_id", upd.UpdateID,
				)
			}
		}
	}
}

func (c *Client) getUpdates(ctx context.Context, offset int64) ([]Update, error) {
	params := map[string]any{
		"timeout":         int(c.pollTimeout.Seconds()),
		"allowed_updates": []string{"message"},
	}
	if offset > 0 {
		params["offset"] = offset
	}

	var batch []Update
	if err := c.call(ctx, "getUpdates", params, &batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// SendText renders the text as Telegram HTML and sends it. If the API
// rejects the rendered markup, the raw text is retried without a parse
// mode so the user still gets a reply.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	html, err := RenderHTML(text)
	if err == nil {
		sendErr := c.call(ctx, "sendMessage", map[string]any{
			"chat_id":    chatID,
			"text":       html,
			"parse_mode": "HTML",
		}, nil)
		if sendErr == nil {
			return nil
		}
		c.logger.Debug("telegram html send failed, retrying plain",
			"chat_id", chatID,
			"error", sendErr,
		)
	}

	return c.call(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	}, nil)
}

// SendPhotoURL sends a photo by its public URL.
func (c *Client) SendPhotoURL(ctx context.Context, chatID int64, photoURL, caption string) error {
	params := map[string]any{
		"chat_id": chatID,
		"photo":   photoURL,
	}
	if caption != "" {
		params["caption"] = caption
	}
	return c.call(ctx, "sendPhoto", params, nil)
}

// SendPhotoData uploads image bytes as a photo attachment.
func (c *Client) SendPhotoData(ctx context.Context, chatID int64, filename string, data []byte, caption string) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	if err := w.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return fmt.Errorf("write chat_id field: %w", err)
	}
	if caption != "" {
		if err := w.WriteField("caption", caption); err != nil {
			return fmt.Errorf("write caption field: %w", err)
		}
	}
	part, err := w.CreateFormFile("photo", filename)
	if err != nil {
		return fmt.Errorf("create photo part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("write photo bytes: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendPhoto"), &body)
	if err != nil {
		return fmt.Errorf("create sendPhoto request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram sendPhoto: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	return decodeEnvelope(resp, nil)
}

// FileURL resolves a file_id to its download URL via getFile.
func (c *Client) FileURL(ctx context.Context, fileID string) (string, error) {
	var file File
	if err := c.call(ctx, "getFile", map[string]any{"file_id": fileID}, &file); err != nil {
		return "", err
	}
	if file.FilePath == "" {
		return "", fmt.Errorf("getFile returned no file_path for %s", fileID)
	}
	// Absolute paths show up when a local bot API server is in use.
	if u, err := url.Parse(file.FilePath); err == nil && u.IsAbs() {
		return file.FilePath, nil
	}
	return fmt.Sprintf("%s/file/bot%s/%s", c.apiBase, c.token, file.FilePath), nil
}

// Ping verifies the token and API reachability via getMe.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, "getMe", nil, nil)
}

// call posts a JSON body to a Bot API method and decodes the result.
func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	var body io.Reader
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal %s params: %w", method, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	if params != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	return decodeEnvelope(resp, result)
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
}

func decodeEnvelope(resp *http.Response, result any) error {
	var env apiEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&env); err != nil {
		return fmt.Errorf("decode telegram response (status %d): %w", resp.StatusCode, err)
	}
	if !env.OK {
		return &APIError{Code: env.ErrorCode, Description: env.Description}
	}
	if result != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return fmt.Errorf("unmarshal telegram result: %w", err)
		}
	}
	return nil
}
