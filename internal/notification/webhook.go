package notification

import (
	"context"
	"fmt"
	"log"
	"time"
)

// WebhookNotifier POSTs alerts as JSON to an HTTP endpoint.
type WebhookNotifier struct {
	url    string
	source string
	poster
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{url: url, source: "confluence-engine", poster: newPoster()}
}

type webhookPayload struct {
	Source string `json:"source"`
	Alert
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	if alert.TS.IsZero() {
		alert.TS = time.Now().UTC()
	}
	if err := w.postJSON(ctx, w.url, webhookPayload{Source: w.source, Alert: alert}); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	log.Printf("[webhook] sent %s alert: %s", alert.Level, alert.Title)
	return nil
}
