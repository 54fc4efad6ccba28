package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mateodaza/sippy-sub000/internal/api"
	"github.com/mateodaza/sippy-sub000/internal/service"
)

// ErrNotFound is returned when the API has no record for the requested user
var ErrNotFound = errors.New("not found")

// Client is the HTTP client for the Sippy debug API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new MCP client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Parse resolves text without executing it
func (c *Client) Parse(ctx context.Context, text string) (*service.ResolutionView, error) {
	var view service.ResolutionView
	if err := c.post(ctx, "/api/parse", api.ParseRequest{Text: text}, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Normalize canonicalizes phone. text is the surrounding message, if any.
func (c *Client) Normalize(ctx context.Context, phone, text string) (*api.NormalizeResponse, error) {
	var resp api.NormalizeResponse
	if err := c.post(ctx, "/api/normalize", api.NormalizeRequest{Phone: phone, Text: text}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Limits returns the guardrail state of a user
func (c *Client) Limits(ctx context.Context, phone string) (*service.LimitsView, error) {
	var view service.LimitsView
	if err := c.get(ctx, "/api/users/"+url.PathEscape(phone), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s failed: %w", req.Method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
