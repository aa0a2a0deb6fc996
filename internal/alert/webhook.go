package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookHandler POSTs a JSON payload for every fired alert, grounded
// on internal/server/ready/http.go's bounded-timeout HTTP client idiom.
type WebhookHandler struct {
	URL    string
	Client *http.Client
}

// NewWebhookHandler builds a WebhookHandler with a bounded-timeout
// client.
func NewWebhookHandler(url string) *WebhookHandler {
	return &WebhookHandler{URL: url, Client: &http.Client{Timeout: 5 * time.Second}}
}

type webhookPayload struct {
	Rule      string    `json:"rule"`
	Category  string    `json:"category"`
	Action    string    `json:"action"`
	Severity  string    `json:"severity"`
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Notify implements Handler.
func (w *WebhookHandler) Notify(ctx context.Context, a Alert) error {
	body, err := json.Marshal(webhookPayload{
		Rule:      a.Rule.Name,
		Category:  string(a.Event.Category),
		Action:    string(a.Event.Action),
		Severity:  a.Event.Severity.String(),
		EventID:   a.Event.ID.String(),
		Timestamp: a.Event.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("alert: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("alert: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("alert: webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("alert: webhook returned %d", resp.StatusCode)
	}
	return nil
}
