// Package ai calls the external completion service that backs autopilot.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Turn is one message of conversation context, oldest first.
type Turn struct {
	Sender string `json:"sender"`
	Text   string `json:"message"`
}

// Client posts the recent conversation to the completion endpoint and
// returns the suggested reply.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: http.DefaultClient,
	}
}

// Respond sends the ordered context and returns the reply text. Any
// transport error, non-2xx status or unusable body is an error; the caller
// owns the autopilot-disable fallback.
func (c *Client) Respond(ctx context.Context, turns []Turn) (string, error) {
	body, err := json.Marshal(turns)
	if err != nil {
		return "", fmt.Errorf("marshal context: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	// The service replies with either a bare JSON string or {"reply": "..."}.
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}
	var wrapped struct {
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil || wrapped.Reply == "" {
		return "", fmt.Errorf("unusable completion response: %q", string(raw))
	}
	return wrapped.Reply, nil
}

// APIError is an HTTP-level failure from the completion service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("completion API error (status %d): %s", e.StatusCode, e.Body)
}

// IsRateLimit reports a 429 from the service.
func (e *APIError) IsRateLimit() bool { return e.StatusCode == 429 }
