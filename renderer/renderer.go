// Package renderer loads pages in a headless browser and turns them
// into structured results: title, dimensions, interactive-element
// inventory, discovered links, and a full-page screenshot.
package renderer

import (
	"context"
	"errors"
	"time"

	"github.com/use-agent/sitewalk/models"
)

// Result is the outcome of rendering one page.
type Result struct {
	// FinalURL is the URL after redirects.
	FinalURL string

	Title     string
	Dim       models.Dimensions
	Inventory models.ElementInventory

	// Links holds raw href strings in document order; the caller
	// normalizes and resolves them against FinalURL.
	Links []string

	// Screenshot is the full-page PNG, empty when capture failed.
	Screenshot []byte

	// Duration is the wall-clock time spent rendering.
	Duration time.Duration
}

// PageRenderer loads a URL in a browser context, waits for readiness,
// and returns the page's structured result. The context carries the
// per-attempt deadline; deadline expiry surfaces as a RENDER_TIMEOUT
// coded error, all other failures as NAVIGATION_FAILED.
type PageRenderer interface {
	Render(ctx context.Context, url string) (*Result, error)
}

// categorizeError maps a rod/navigation failure to a coded CrawlError.
// Context deadline expiry is the retryable case; everything else is a
// structural failure the caller must not retry.
func categorizeError(err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewCrawlError(models.ErrCodeTimeout, msg, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return models.NewCrawlError(models.ErrCodeNavigation, msg, err)
}
