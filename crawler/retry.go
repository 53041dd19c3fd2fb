// Package crawler orchestrates a crawl run: frontier scheduling, fetch
// retries, graph assembly, and reporter events.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/sitewalk/models"
	"github.com/use-agent/sitewalk/renderer"
)

// TimeoutExhaustedError reports that a page stayed unreachable for the
// whole attempt budget. The crawl records a Failed page and moves on.
type TimeoutExhaustedError struct {
	URL      string
	Attempts int
	Last     error // final attempt's timeout error
}

func (e *TimeoutExhaustedError) Error() string {
	return fmt.Sprintf("%s: %s unreachable after %d attempts", models.ErrCodeTimeoutExhausted, e.URL, e.Attempts)
}

func (e *TimeoutExhaustedError) Unwrap() error {
	return e.Last
}

// FetchWithRetry renders url with bounded retry-on-timeout: a timeout
// gets an immediate retry (renderer hangs are treated as transient, not
// as rate-limit signals) up to attempts total tries; any other renderer
// failure propagates at once. Returns the result, the number of
// attempts actually made, and the terminal error if any.
func FetchWithRetry(ctx context.Context, r renderer.PageRenderer, url string, attempts int, perAttemptTimeout time.Duration) (*renderer.Result, int, error) {
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempt - 1, err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, perAttemptTimeout)
		res, err := r.Render(attemptCtx, url)
		cancel()

		if err == nil {
			return res, attempt, nil
		}
		if ctx.Err() != nil {
			return nil, attempt, ctx.Err()
		}
		if !isTimeout(err) {
			// Structural failure (DNS, navigation refused): fail fast.
			return nil, attempt, err
		}

		lastErr = err
		if attempt < attempts {
			slog.Debug("render timed out, retrying",
				"url", url,
				"attempt", attempt,
				"budget", attempts,
			)
		}
	}

	return nil, attempts, &TimeoutExhaustedError{URL: url, Attempts: attempts, Last: lastErr}
}

// isTimeout reports whether err is a per-attempt timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ce *models.CrawlError
	return errors.As(err, &ce) && ce.Code == models.ErrCodeTimeout
}
