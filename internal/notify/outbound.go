package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// OutboundSender relays a chat reply to a customer on an external channel.
// Used when an agent or autopilot answers a WhatsApp or Telegram thread.
type OutboundSender interface {
	SendText(ctx context.Context, recipient, text string) error
}

// WhatsAppSender posts text messages through the Graph API.
type WhatsAppSender struct {
	NumberID    string
	AccessToken string
	BaseURL     string
	HTTPClient  *http.Client
}

func NewWhatsAppSender(numberID, accessToken string) *WhatsAppSender {
	return &WhatsAppSender{
		NumberID:    numberID,
		AccessToken: accessToken,
		BaseURL:     "https://graph.facebook.com/v17.0",
		HTTPClient:  http.DefaultClient,
	}
}

func (s *WhatsAppSender) SendText(ctx context.Context, phone, text string) error {
	// Graph rejects numbers with the mobile prefix digit; strip position 3
	// the same way the upstream dashboard does.
	to := phone
	if len(phone) > 3 {
		to = phone[:2] + phone[3:]
	}
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "text",
		"text":              map[string]any{"body": text, "preview_url": "true"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", s.BaseURL, s.NumberID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.AccessToken)

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("graph API status %d", resp.StatusCode)
	}
	return nil
}

// TelegramSender posts text messages through the Bot API.
type TelegramSender struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
}

func NewTelegramSender(token string) *TelegramSender {
	return &TelegramSender{
		Token:      token,
		BaseURL:    "https://api.telegram.org",
		HTTPClient: http.DefaultClient,
	}
}

func (s *TelegramSender) SendText(ctx context.Context, chatID, text string) error {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.BaseURL, s.Token)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram API status %d", resp.StatusCode)
	}
	return nil
}
