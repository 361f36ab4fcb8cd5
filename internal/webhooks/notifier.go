// Package webhooks posts run outcomes to a configured HTTP endpoint.
package webhooks

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"lnskit/internal/metrics"
)

// Notifier delivers signed JSON payloads with exponential backoff.
type Notifier struct {
	URL         string
	Secret      string
	HTTP        *http.Client
	MaxAttempts int
	Log         zerolog.Logger
	// BaseDelay is the first retry delay; it doubles per attempt.
	BaseDelay   time.Duration
}

func NewNotifier(url, secret string, maxAttempts int, log zerolog.Logger) *Notifier {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Notifier{
		URL:         url,
		Secret:      secret,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		MaxAttempts: maxAttempts,
		Log:         log,
		BaseDelay:   time.Second,
	}
}

// Notify posts payload until a 2xx response, MaxAttempts failures, or ctx
// ends.
func (n *Notifier) Notify(ctx context.Context, eventType string, payload []byte) error {
	var lastErr error
	for attempt := 0; attempt < n.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(n.backoff(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		code, err := n.deliver(ctx, eventType, payload)
		if err == nil {
			return nil
		}
		lastErr = err
		n.Log.Warn().Err(err).Int("attempt", attempt+1).Int("code", code).Str("event", eventType).Msg("webhook delivery failed")
	}
	return fmt.Errorf("webhook %s: giving up after %d attempts: %w", eventType, n.MaxAttempts, lastErr)
}

func (n *Notifier) deliver(ctx context.Context, eventType string, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", eventType)
	if n.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(n.Secret, payload))
	}
	start := time.Now()
	resp, err := n.HTTP.Do(req)
	latency := float64(time.Since(start).Milliseconds())
	code := 0
	if resp != nil {
		code = resp.StatusCode
		_ = resp.Body.Close()
	}
	status := "success"
	if err == nil && (code < 200 || code >= 300) {
		err = fmt.Errorf("unexpected status %d", code)
	}
	if err != nil {
		status = "failure"
	}
	metrics.WebhookDeliveries.WithLabelValues(eventType, status).Inc()
	metrics.WebhookLatency.WithLabelValues(eventType, strconv.Itoa(code)).Observe(latency)
	return code, err
}

func (n *Notifier) backoff(attempts int) time.Duration {
	attempts = min(max(attempts, 0), 10)
	return min(n.BaseDelay*time.Duration(1<<attempts), time.Hour)
}
