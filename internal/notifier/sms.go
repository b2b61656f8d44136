package notifier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/noah-isme/grievance-api/internal/models"
)

const smsMaxRunes = 320

// SMSConfig configures the Twilio messaging API.
type SMSConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	From       string
}

// SMSNotifier texts recipients about escalations and high or urgent grievances.
type SMSNotifier struct {
	cfg  SMSConfig
	http *http.Client
}

// NewSMSNotifier builds an SMS notifier.
func NewSMSNotifier(cfg SMSConfig, timeout time.Duration) *SMSNotifier {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twilio.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMSNotifier{cfg: cfg, http: &http.Client{Timeout: timeout}}
}

func (n *SMSNotifier) Name() string { return "sms" }

func (n *SMSNotifier) Accepts(evt models.NotificationEvent) bool {
	if evt.Recipient.Phone == "" {
		return false
	}
	return evt.Type == models.EventGrievanceEscalated || evt.Priority.IsElevated()
}

func (n *SMSNotifier) Notify(ctx context.Context, evt models.NotificationEvent) error {
	form := url.Values{}
	form.Set("To", evt.Recipient.Phone)
	form.Set("From", n.cfg.From)
	form.Set("Body", truncateRunes(Subject(evt)+": "+evt.Message, smsMaxRunes))

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", n.cfg.BaseURL, url.PathEscape(n.cfg.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.SetBasicAuth(n.cfg.AccountSID, n.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send sms: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
