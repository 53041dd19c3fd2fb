package crawler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/use-agent/sitewalk/config"
	"github.com/use-agent/sitewalk/frontier"
	"github.com/use-agent/sitewalk/graph"
	"github.com/use-agent/sitewalk/models"
	"github.com/use-agent/sitewalk/renderer"
	"github.com/use-agent/sitewalk/report"
	"github.com/use-agent/sitewalk/urlnorm"
	"golang.org/x/time/rate"
)

// State is the controller lifecycle phase.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// ScreenshotSink persists a page screenshot and returns the stored
// artifact path. Implementations live in the report package; a nil sink
// disables screenshot persistence.
type ScreenshotSink interface {
	Save(url string, ts time.Time, png []byte) (string, error)
}

// Controller orchestrates one crawl run: it pops from the frontier,
// fetches through the retry policy, feeds the graph builder, enqueues
// same-scope discoveries, and emits reporter events. The frontier and
// the graph builder are the only mutable shared state.
type Controller struct {
	seed     string
	crawlCfg config.CrawlConfig
	timeout  time.Duration

	scope    *urlnorm.Scope
	frontier *frontier.Frontier
	graph    *graph.Builder
	renderer renderer.PageRenderer
	reporter report.Reporter
	shots    ScreenshotSink
	limiter  *rate.Limiter

	state   atomic.Int32
	pages   atomic.Int64
	ceiling atomic.Bool
}

// New validates the run configuration and builds a Controller.
// A bad seed URL or non-positive ceiling is fatal here, before any
// crawling begins.
func New(cfg *config.Config, rend renderer.PageRenderer, rep report.Reporter, shots ScreenshotSink) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, models.NewCrawlError(models.ErrCodeInvalidInput, "invalid run configuration", err)
	}

	seed, err := urlnorm.Normalize(cfg.Crawl.Seed)
	if err != nil {
		return nil, models.NewCrawlError(models.ErrCodeInvalidInput, "invalid seed URL", err)
	}

	scope, err := urlnorm.NewScope(urlnorm.Policy(cfg.Crawl.Scope), seed, cfg.Crawl.AllowHosts)
	if err != nil {
		return nil, models.NewCrawlError(models.ErrCodeInvalidInput, "invalid scope", err)
	}

	limit := rate.Inf
	if cfg.Crawl.FetchRate > 0 {
		limit = rate.Limit(cfg.Crawl.FetchRate)
	}
	burst := cfg.Crawl.FetchBurst
	if burst < 1 {
		burst = 1
	}

	if rep == nil {
		rep = report.Multi{}
	}

	return &Controller{
		seed:     seed,
		crawlCfg: cfg.Crawl,
		timeout:  cfg.Render.Timeout,
		scope:    scope,
		frontier: frontier.New(scope.InScope),
		graph:    graph.NewBuilder(),
		renderer: rend,
		reporter: rep,
		shots:    shots,
		limiter:  rate.NewLimiter(limit, burst),
	}, nil
}

// State returns the current lifecycle phase.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Graph exposes the builder for post-run inspection (persistence,
// dead-link probing).
func (c *Controller) Graph() *graph.Builder {
	return c.graph
}

// FrontierStats returns current frontier occupancy.
func (c *Controller) FrontierStats() frontier.Stats {
	return c.frontier.Stats()
}

// Run executes the crawl until the frontier is exhausted, the page
// ceiling is reached, or ctx is canceled. In-flight fetches drain
// before the controller reaches Done. Run can be called once.
func (c *Controller) Run(ctx context.Context) (*models.Summary, error) {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, models.NewCrawlError(models.ErrCodeInvalidInput, "controller already started", nil)
	}

	started := time.Now()
	slog.Info("crawl starting",
		"seed", c.seed,
		"maxPages", c.crawlCfg.MaxPages,
		"maxDepth", c.crawlCfg.MaxDepth,
		"workers", c.crawlCfg.Workers,
	)

	c.frontier.Offer(c.seed, 0)

	// Cancellation closes the frontier so blocked workers exit; the
	// watcher itself exits when the run finishes.
	runDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.frontier.Close()
		case <-runDone:
		}
	}()

	var wg sync.WaitGroup
	for range c.crawlCfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.workerLoop(ctx)
		}()
	}
	wg.Wait()
	close(runDone)

	c.state.Store(int32(StateDone))

	succeeded, failed, edges := c.graph.Counts()
	summary := &models.Summary{
		Seed:        c.seed,
		Succeeded:   succeeded,
		Failed:      failed,
		Edges:       edges,
		Duration:    time.Since(started),
		Termination: c.termination(ctx),
		StartedAt:   started,
		FinishedAt:  time.Now(),
	}

	if err := c.reporter.RunFinished(*summary); err != nil {
		slog.Error("reporter event failed", "event", "run_finished", "error", err)
	}

	slog.Info("crawl finished",
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"edges", summary.Edges,
		"termination", summary.Termination,
		"duration", summary.Duration.Round(time.Millisecond),
	)
	return summary, nil
}

func (c *Controller) termination(ctx context.Context) string {
	switch {
	case ctx.Err() != nil:
		return "canceled"
	case c.ceiling.Load():
		return "page_ceiling"
	default:
		return "exhausted"
	}
}

// workerLoop claims URLs until the frontier refuses further pops.
func (c *Controller) workerLoop(ctx context.Context) {
	for {
		entry, ok := c.frontier.Next()
		if !ok {
			return
		}

		if err := c.limiter.Wait(ctx); err != nil {
			// Run canceled while throttled: the claimed URL still gets
			// a terminal record so visited and recorded counts agree.
			c.finishPage(entry.URL, models.PageFailure{
				URL:       entry.URL,
				ErrorKind: models.ErrCodeCanceled,
			})
			continue
		}

		c.processPage(ctx, entry)
	}
}

// processPage fetches one claimed URL and applies the outcome to the
// graph and the frontier.
func (c *Controller) processPage(ctx context.Context, entry frontier.Entry) {
	res, attempts, err := FetchWithRetry(ctx, c.renderer, entry.URL, c.crawlCfg.MaxAttempts, c.timeout)
	if err != nil {
		c.finishPage(entry.URL, failureFor(entry.URL, attempts, err))
		return
	}

	shotPath := c.saveScreenshot(entry.URL, res)

	id := c.graph.RecordPage(entry.URL, res.Title, res.Dim, res.Inventory, res.Duration, shotPath)
	c.discoverLinks(id, entry, res)
	c.frontier.MarkVisited(entry.URL)
	c.countPage()

	rec, _ := c.graph.Get(id)
	if err := c.reporter.PageSucceeded(rec); err != nil {
		slog.Error("reporter event failed", "event", "page_succeeded", "error", err)
	}
	c.emitProgress(rec)
}

// discoverLinks normalizes every raw href, records an edge for each
// same-scope target, and enqueues those still within the depth ceiling.
func (c *Controller) discoverLinks(source models.PageID, entry frontier.Entry, res *renderer.Result) {
	for _, href := range res.Links {
		norm, err := urlnorm.Resolve(res.FinalURL, href)
		if err != nil {
			// Malformed link: drop it, never enqueue.
			slog.Debug("dropping malformed link", "href", href, "page", entry.URL)
			continue
		}
		if !c.scope.InScope(norm) {
			continue
		}

		if err := c.graph.RecordEdge(source, norm); err != nil {
			slog.Warn("failed to record edge", "source", entry.URL, "target", norm, "error", err)
		}
		if entry.Depth < c.crawlCfg.MaxDepth {
			c.frontier.Offer(norm, entry.Depth+1)
		}
	}
}

// finishPage records a terminal failure and advances the frontier.
func (c *Controller) finishPage(url string, f models.PageFailure) {
	c.graph.RecordFailure(url, f.ErrorKind, f.Attempts)
	c.frontier.MarkVisited(url)
	c.countPage()

	if err := c.reporter.PageFailed(f); err != nil {
		slog.Error("reporter event failed", "event", "page_failed", "error", err)
	}
}

// countPage bumps the terminal-record counter and closes the frontier
// when the page ceiling is reached; in-flight fetches drain normally.
func (c *Controller) countPage() {
	n := c.pages.Add(1)
	if int(n) >= c.crawlCfg.MaxPages {
		if c.ceiling.CompareAndSwap(false, true) {
			slog.Info("page ceiling reached, draining", "pages", n)
		}
		c.state.CompareAndSwap(int32(StateRunning), int32(StateDraining))
		c.frontier.Close()
	}
}

// saveScreenshot persists the page screenshot, if any. Write failures
// go to the fallback log and never fail the page.
func (c *Controller) saveScreenshot(url string, res *renderer.Result) string {
	if c.shots == nil || len(res.Screenshot) == 0 {
		return ""
	}
	path, err := c.shots.Save(url, time.Now(), res.Screenshot)
	if err != nil {
		slog.Error("screenshot write failed",
			"url", url,
			"error", models.NewCrawlError(models.ErrCodeReport, "screenshot write failed", err),
		)
		return ""
	}
	return path
}

func (c *Controller) emitProgress(rec models.PageRecord) {
	succeeded, failed, _ := c.graph.Counts()
	p := models.Progress{
		PagesCrawled: succeeded + failed,
		LatestURL:    rec.URL,
		LatestTitle:  rec.Title,
		Inventory:    rec.Inventory,
		Graph:        c.graph.Snapshot(),
	}
	if err := c.reporter.Progress(p); err != nil {
		slog.Error("reporter event failed", "event", "progress", "error", err)
	}
}

// failureFor maps a terminal fetch error to a PageFailure event.
func failureFor(url string, attempts int, err error) models.PageFailure {
	var exhausted *TimeoutExhaustedError
	if errors.As(err, &exhausted) {
		return models.PageFailure{
			URL:       url,
			ErrorKind: models.ErrCodeTimeoutExhausted,
			Attempts:  exhausted.Attempts,
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// Run-level cancellation, not a per-attempt timeout.
		return models.PageFailure{URL: url, ErrorKind: models.ErrCodeCanceled, Attempts: attempts}
	}
	return models.PageFailure{
		URL:       url,
		ErrorKind: models.ErrorKind(err),
		Attempts:  attempts,
	}
}
