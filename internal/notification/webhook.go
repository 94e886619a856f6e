// Package notification delivers indicator reports to external HTTP hooks.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"ta-snapshot/internal/model"
)

// WebhookPublisher POSTs every report to a generic HTTP endpoint.
// It implements model.SummaryPublisher.
type WebhookPublisher struct {
	url    string
	client *http.Client
}

// NewWebhookPublisher creates a webhook publisher. timeout <= 0 means 10s.
func NewWebhookPublisher(url string, timeout time.Duration) *WebhookPublisher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookPublisher{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// webhookBody wraps the report so receivers can route on series without
// decoding it.
type webhookBody struct {
	Series string          `json:"series"`
	Report json.RawMessage `json:"report"`
	SentAt string          `json:"sent_at"`
}

// PublishSummary posts payload. Any non-2xx status is an error.
func (w *WebhookPublisher) PublishSummary(ctx context.Context, key model.SeriesKey, payload []byte) error {
	body, err := json.Marshal(webhookBody{
		Series: key.String(),
		Report: payload,
		SentAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}

	slog.Debug("webhook delivered", slog.String("series", key.String()), slog.String("url", w.url))
	return nil
}

// Close releases idle connections.
func (w *WebhookPublisher) Close() error {
	w.client.CloseIdleConnections()
	return nil
}
