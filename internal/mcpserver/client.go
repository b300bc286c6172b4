package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the platform API.
type Config struct {
	APIURL   string // Base URL, e.g. "http://localhost:8080"
	APIToken string // Admin JWT used as a bearer token
}

// PlatformClient is a pure HTTP client for the platform's admin API.
type PlatformClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewPlatformClient creates a new client for the platform API.
func NewPlatformClient(cfg Config) *PlatformClient {
	return &PlatformClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the platform.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the platform and returns the response body.
func (c *PlatformClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// GetBooking fetches a single booking by ID.
func (c *PlatformClient) GetBooking(ctx context.Context, id string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/bookings/"+id, nil, nil)
}

// ListDisputes returns bookings currently in the disputed state.
func (c *PlatformClient) ListDisputes(ctx context.Context, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/admin/disputes", q, nil)
}

// ResolveDispute resolves a disputed booking as complete or revoke.
// Notes travel into the platform's audit log.
func (c *PlatformClient) ResolveDispute(ctx context.Context, bookingID, resolution, notes string) (json.RawMessage, error) {
	body := map[string]string{
		"resolution": resolution,
	}
	if notes != "" {
		body["notes"] = notes
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/admin/disputes/"+bookingID+"/resolve", nil, body)
}

// ModerateCompanion approves or rejects a companion listing.
func (c *PlatformClient) ModerateCompanion(ctx context.Context, companionID, status, note string) (json.RawMessage, error) {
	body := map[string]string{
		"status": status,
	}
	if note != "" {
		body["note"] = note
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/admin/companions/"+companionID+"/moderate", nil, body)
}

// PlatformStats returns booking counts by status and the current fee.
func (c *PlatformClient) PlatformStats(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/admin/stats", nil, nil)
}

// TriggerSweep runs the expiry and auto-completion sweeps immediately.
func (c *PlatformClient) TriggerSweep(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/admin/sweep", nil, nil)
}
