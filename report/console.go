package report

import (
	"log/slog"
	"time"

	"github.com/use-agent/sitewalk/models"
)

// Console emits crawl events as structured log records. It is the
// default reporter for CLI runs; the markdown log carries the durable
// detail.
type Console struct{}

func (Console) PageSucceeded(rec models.PageRecord) error {
	slog.Info("page crawled",
		"url", rec.URL,
		"title", rec.Title,
		"duration", rec.Duration.Round(time.Millisecond),
		"elements", rec.Inventory.Total(),
	)
	return nil
}

func (Console) PageFailed(f models.PageFailure) error {
	slog.Warn("page failed",
		"url", f.URL,
		"errorKind", f.ErrorKind,
		"attempts", f.Attempts,
	)
	return nil
}

func (Console) Progress(p models.Progress) error {
	slog.Debug("crawl progress",
		"pagesCrawled", p.PagesCrawled,
		"latest", p.LatestURL,
	)
	return nil
}

func (Console) RunFinished(s models.Summary) error {
	slog.Info("crawl summary",
		"seed", s.Seed,
		"succeeded", s.Succeeded,
		"failed", s.Failed,
		"edges", s.Edges,
		"termination", s.Termination,
	)
	return nil
}
