// Package report renders crawl events to persistent output: the
// markdown crawl log, screenshot artifacts, and structured console
// progress. Reporters are append-only from the controller's point of
// view; a reporter error never aborts the crawl.
package report

import (
	"log/slog"

	"github.com/use-agent/sitewalk/models"
)

// Reporter consumes structured crawl events. Implementations must not
// block the crawl; errors are surfaced to the caller, which logs them
// to a fallback channel and continues.
type Reporter interface {
	PageSucceeded(rec models.PageRecord) error
	PageFailed(f models.PageFailure) error
	Progress(p models.Progress) error
	RunFinished(s models.Summary) error
}

// Multi fans events out to several reporters. A failing reporter is
// logged and skipped; the rest still receive the event.
type Multi []Reporter

func (m Multi) PageSucceeded(rec models.PageRecord) error {
	for _, r := range m {
		if err := r.PageSucceeded(rec); err != nil {
			logReporterError("page_succeeded", err)
		}
	}
	return nil
}

func (m Multi) PageFailed(f models.PageFailure) error {
	for _, r := range m {
		if err := r.PageFailed(f); err != nil {
			logReporterError("page_failed", err)
		}
	}
	return nil
}

func (m Multi) Progress(p models.Progress) error {
	for _, r := range m {
		if err := r.Progress(p); err != nil {
			logReporterError("progress", err)
		}
	}
	return nil
}

func (m Multi) RunFinished(s models.Summary) error {
	for _, r := range m {
		if err := r.RunFinished(s); err != nil {
			logReporterError("run_finished", err)
		}
	}
	return nil
}

func logReporterError(event string, err error) {
	slog.Error("reporter event failed",
		"event", event,
		"error", models.NewCrawlError(models.ErrCodeReport, "reporter write failed", err),
	)
}
