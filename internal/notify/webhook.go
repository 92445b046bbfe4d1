package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/notifyhub/event-notifier/internal/domain"
	"github.com/notifyhub/event-notifier/internal/message"
	"github.com/notifyhub/event-notifier/internal/ratelimiter"
)

// WebhookRequest is the JSON body posted once per recipient.
type WebhookRequest struct {
	To          string  `json:"to"`
	EventID     int64   `json:"event_id"`
	EventName   string  `json:"event_name"`
	Description *string `json:"description"`
	EventDate   string  `json:"event_date"`
}

// WebhookNotifier delivers notifications by POSTing to a configured URL.
// The URL is injected from config so tests can point to a local server.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
	limiter    *ratelimiter.Limiter
}

func NewWebhookNotifier(url string, timeout time.Duration, limiter *ratelimiter.Limiter) *WebhookNotifier {
	if limiter == nil {
		limiter = ratelimiter.New(0)
	}
	return &WebhookNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

// Notify posts to every recipient in order and stops at the first failure.
// The message is then nacked and redelivered, so recipients before the
// failure may be notified more than once.
func (w *WebhookNotifier) Notify(ctx context.Context, recipients []domain.Recipient, n message.Notification) error {
	for _, r := range recipients {
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := w.send(ctx, r, n); err != nil {
			return fmt.Errorf("notify %s about event %d: %w", r.Username, n.ID, err)
		}
	}
	return nil
}

func (w *WebhookNotifier) send(ctx context.Context, r domain.Recipient, n message.Notification) error {
	body, err := json.Marshal(WebhookRequest{
		To:          r.Username,
		EventID:     n.ID,
		EventName:   n.Name,
		Description: n.Description,
		EventDate:   n.EventDate,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected webhook status: %d", resp.StatusCode)
	}
	return nil
}

// compile-time check that WebhookNotifier implements Notifier
var _ Notifier = (*WebhookNotifier)(nil)
