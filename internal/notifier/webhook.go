package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/noah-isme/grievance-api/internal/models"
)

// WebhookNotifier posts channel broadcasts to an incoming chat webhook
// (Slack and Google Chat both accept a JSON body with a "text" field).
type WebhookNotifier struct {
	url  string
	http *http.Client
}

type webhookPayload struct {
	Text       string    `json:"text"`
	Channel    string    `json:"channel,omitempty"`
	Event      string    `json:"event"`
	TrackingID string    `json:"tracking_id"`
	Priority   string    `json:"priority"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewWebhookNotifier builds a webhook notifier for url.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{url: url, http: &http.Client{Timeout: timeout}}
}

func (n *WebhookNotifier) Name() string { return "webhook" }

func (n *WebhookNotifier) Accepts(evt models.NotificationEvent) bool {
	return n.url != "" && isBroadcast(evt)
}

func (n *WebhookNotifier) Notify(ctx context.Context, evt models.NotificationEvent) error {
	body, err := json.Marshal(webhookPayload{
		Text:       Subject(evt) + "\n" + evt.Message,
		Channel:    evt.ChatChannel,
		Event:      string(evt.Type),
		TrackingID: evt.TrackingID,
		Priority:   string(evt.Priority),
		OccurredAt: evt.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("post webhook: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
