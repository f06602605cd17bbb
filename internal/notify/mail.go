package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// EmailSender posts intents to an HTTP mail relay. Delivery is best-effort;
// the worker logs failures and moves on.
type EmailSender struct {
	Endpoint   string
	APIKey     string
	From       string
	HTTPClient *http.Client
}

func NewEmailSender(endpoint, apiKey, from string) *EmailSender {
	return &EmailSender{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		From:       from,
		HTTPClient: http.DefaultClient,
	}
}

func (s *EmailSender) Send(ctx context.Context, intent Intent) error {
	if s.Endpoint == "" {
		return nil
	}
	payload := map[string]any{
		"from":    s.From,
		"to":      intent.Recipients,
		"subject": intent.Subject,
		"body":    intent.Body,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal mail: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mail relay status %d", resp.StatusCode)
	}
	return nil
}
