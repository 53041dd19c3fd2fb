// Package webhook notifies an external endpoint when a crawl run
// finishes. Delivery is best effort with staged retries; a dead
// endpoint never affects the run that triggered it.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/sitewalk/models"
)

const (
	EventCrawlCompleted = "crawl.completed"
	EventCrawlFailed    = "crawl.failed"
)

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string      `json:"type"` // "crawl.completed", "crawl.failed"
	JobID     string      `json:"job_id"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Notifier delivers run-completion events to one configured endpoint.
// The zero-value URL disables delivery.
type Notifier struct {
	url    string
	secret string
	client *http.Client
}

// NewNotifier builds a Notifier for url. secret, if non-empty, signs
// every request body with HMAC-SHA256.
func NewNotifier(url, secret string) *Notifier {
	return &Notifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether an endpoint is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.url != ""
}

// CrawlCompleted sends the run summary asynchronously.
func (n *Notifier) CrawlCompleted(jobID string, summary models.Summary) {
	if !n.Enabled() {
		return
	}
	n.deliverAsync(&Event{
		Type:      EventCrawlCompleted,
		JobID:     jobID,
		Timestamp: time.Now().Unix(),
		Data:      summary,
	})
}

// CrawlFailed reports a run that never produced a summary.
func (n *Notifier) CrawlFailed(jobID string, crawlErr error) {
	if !n.Enabled() {
		return
	}
	detail := &models.ErrorDetail{Code: models.ErrorKind(crawlErr), Message: crawlErr.Error()}
	n.deliverAsync(&Event{
		Type:      EventCrawlFailed,
		JobID:     jobID,
		Timestamp: time.Now().Unix(),
		Data:      detail,
	})
}

// Deliver sends one event synchronously.
// Signed bodies carry the header X-Sitewalk-Signature: sha256=<hex>.
func (n *Notifier) Deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Sitewalk-Webhook/1.0")

	if n.secret != "" {
		mac := hmac.New(sha256.New, []byte(n.secret))
		mac.Write(body)
		req.Header.Set("X-Sitewalk-Signature", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// deliverAsync retries on a fixed schedule: immediately, then after
// 1s, 5s, and 30s.
func (n *Notifier) deliverAsync(event *Event) {
	go func() {
		delays := []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second}
		for attempt, delay := range delays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := n.Deliver(ctx, event)
			cancel()
			if err == nil {
				slog.Info("webhook delivered",
					"event", event.Type,
					"job_id", event.JobID,
					"attempt", attempt+1,
				)
				return
			}
			slog.Warn("webhook delivery failed",
				"event", event.Type,
				"job_id", event.JobID,
				"attempt", attempt+1,
				"error", err,
			)
		}
		slog.Error("webhook delivery exhausted all retries",
			"event", event.Type,
			"job_id", event.JobID,
		)
	}()
}
