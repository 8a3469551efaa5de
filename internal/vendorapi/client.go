// Package vendorapi provides a client for the commerce backend REST
// API: vendor auth, store and product management, storefront profile,
// and AI image generation jobs.
//
// The backend issues a bearer token per vendor (see AuthVendor); every
// other call carries that token. The token is an argument rather than
// client state because one bot process serves many vendors.
package vendorapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vendora-ai/vendora/internal/httpkit"
)

// Client is the commerce backend client.
type Client struct {
	baseURL        string
	storefrontHost string
	httpClient     *http.Client
	logger         *slog.Logger
}

// NewClient creates a backend client. storefrontHost is the public
// host used when building storefront and edit links.
func NewClient(baseURL, storefrontHost string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		storefrontHost: storefrontHost,
		httpClient:     httpkit.NewClient(httpkit.WithTimeout(60 * time.Second)),
		logger:         logger,
	}
}

// AuthResult is the outcome of a vendor authentication.
type AuthResult struct {
	UserToken string `json:"user_token"`
	StoreID   string `json:"store_id"`
	NewUser   bool   `json:"new_user"`
}

// AuthVendor authenticates a vendor by phone number and returns the
// bearer token and store id for subsequent calls.
func (c *Client) AuthVendor(ctx context.Context, phone string) (*AuthResult, error) {
	var resp struct {
		AccessToken string          `json:"access_token"`
		StoreID     json.RawMessage `json:"store_id"`
		NewUser     bool            `json:"new_user"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/ocr/auth/vendor/", "", map[string]any{
		"phone_no": phone,
	}, &resp)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		UserToken: resp.AccessToken,
		StoreID:   rawToString(resp.StoreID),
		NewUser:   resp.NewUser,
	}, nil
}

// CreateStore creates a store for the vendor with the given business
// categories and returns the new store id.
func (c *Client) CreateStore(ctx context.Context, token string, categories []string) (string, error) {
	var resp struct {
		ID json.RawMessage `json:"id"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/ocr/create_store/", token, map[string]any{
		"categories": categories,
	}, &resp)
	if err != nil {
		return "", err
	}
	return rawToString(resp.ID), nil
}

// doJSON performs a JSON request against the backend. token may be
// empty for unauthenticated endpoints. result may be nil to discard
// the body.
func (c *Client) doJSON(ctx context.Context, method, path, token string, data any, result any) error {
	var body []byte
	if data != nil {
		var err error
		body, err = json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody := httpkit.ReadErrorBody(resp.Body, 512)
		return fmt.Errorf("backend error %d on %s: %s", resp.StatusCode, path, errBody)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response from %s: %w", path, err)
		}
	}

	return nil
}

// getJSON performs a GET with optional query parameters, decoding the
// body into result.
func (c *Client) getJSON(ctx context.Context, path, token string, query url.Values, result any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 512)
		return fmt.Errorf("backend error %d on %s: %s", resp.StatusCode, path, errBody)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response from %s: %w", path, err)
		}
	}

	return nil
}

// doMultipart sends a prepared multipart body.
func (c *Client) doMultipart(ctx context.Context, method, path, token string, body *bytes.Buffer, contentType string, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody := httpkit.ReadErrorBody(resp.Body, 512)
		return fmt.Errorf("backend error %d on %s: %s", resp.StatusCode, path, errBody)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response from %s: %w", path, err)
		}
	}

	return nil
}

// rawToString renders a JSON scalar (string or number) as a string.
// The backend is inconsistent about id types across endpoints.
func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
