package crawler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/sitewalk/config"
	"github.com/use-agent/sitewalk/models"
)

// captureReporter records every event it receives.
type captureReporter struct {
	mu        sync.Mutex
	succeeded []models.PageRecord
	failed    []models.PageFailure
	progress  []models.Progress
	finished  []models.Summary
	fail      bool // return an error from every event
}

func (r *captureReporter) PageSucceeded(rec models.PageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.succeeded = append(r.succeeded, rec)
	if r.fail {
		return models.NewCrawlError(models.ErrCodeReport, "write refused", nil)
	}
	return nil
}

func (r *captureReporter) PageFailed(f models.PageFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, f)
	if r.fail {
		return models.NewCrawlError(models.ErrCodeReport, "write refused", nil)
	}
	return nil
}

func (r *captureReporter) Progress(p models.Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
	if r.fail {
		return models.NewCrawlError(models.ErrCodeReport, "write refused", nil)
	}
	return nil
}

func (r *captureReporter) RunFinished(s models.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, s)
	if r.fail {
		return models.NewCrawlError(models.ErrCodeReport, "write refused", nil)
	}
	return nil
}

func (r *captureReporter) failures() []models.PageFailure {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.PageFailure, len(r.failed))
	copy(out, r.failed)
	return out
}

func testConfig(seed string) *config.Config {
	cfg := config.Load()
	cfg.Crawl.Seed = seed
	cfg.Crawl.Workers = 1
	cfg.Crawl.FetchRate = 0 // unthrottled in tests
	cfg.Render.Timeout = 100 * time.Millisecond
	return cfg
}

func TestControllerRun_StopsAtPageCeiling(t *testing.T) {
	f := newFakeRenderer()
	f.add("https://example.com/", fakePage{
		title: "Home",
		links: []string{"/a", "https://other.com/x", "/a#frag"},
	})
	f.add("https://example.com/a", fakePage{title: "A"})

	cfg := testConfig("https://example.com")
	cfg.Crawl.MaxPages = 2

	rep := &captureReporter{}
	c, err := New(cfg, f, rep, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Succeeded != 2 || summary.Failed != 0 {
		t.Errorf("succeeded/failed = %d/%d, want 2/0", summary.Succeeded, summary.Failed)
	}
	if summary.Termination != "page_ceiling" {
		t.Errorf("termination = %q, want page_ceiling", summary.Termination)
	}
	// "/a" and "/a#frag" collapse to one edge; the off-site link gets none.
	if summary.Edges != 1 {
		t.Errorf("edges = %d, want 1", summary.Edges)
	}
	if got := f.callCount("https://other.com/x"); got != 0 {
		t.Errorf("off-site URL fetched %d times, want 0", got)
	}
	if got := f.callCount("https://example.com/a"); got != 1 {
		t.Errorf("deduplicated URL fetched %d times, want 1", got)
	}
	if c.State() != StateDone {
		t.Errorf("state = %v, want done", c.State())
	}
}

func TestControllerRun_TimeoutExhaustionFailsPage(t *testing.T) {
	f := newFakeRenderer()
	f.add("https://example.com/", fakePage{title: "Home", links: []string{"/slow"}})
	f.add("https://example.com/slow", fakePage{timeouts: -1})

	cfg := testConfig("https://example.com")
	rep := &captureReporter{}
	c, err := New(cfg, f, rep, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Succeeded != 1 || summary.Failed != 1 {
		t.Errorf("succeeded/failed = %d/%d, want 1/1", summary.Succeeded, summary.Failed)
	}
	if summary.Termination != "exhausted" {
		t.Errorf("termination = %q, want exhausted", summary.Termination)
	}
	if got := f.callCount("https://example.com/slow"); got != cfg.Crawl.MaxAttempts {
		t.Errorf("renderer called %d times, want %d", got, cfg.Crawl.MaxAttempts)
	}

	failures := rep.failures()
	if len(failures) != 1 {
		t.Fatalf("failure events = %d, want 1", len(failures))
	}
	if failures[0].ErrorKind != models.ErrCodeTimeoutExhausted || failures[0].Attempts != cfg.Crawl.MaxAttempts {
		t.Errorf("failure = %+v", failures[0])
	}

	snap := c.Graph().Snapshot()
	var found bool
	for _, p := range snap.Pages {
		if p.URL == "https://example.com/slow" {
			found = true
			if p.Status != models.StatusFailed || p.Attempts != cfg.Crawl.MaxAttempts {
				t.Errorf("failed record = %+v", p)
			}
		}
	}
	if !found {
		t.Error("exhausted page has no graph record")
	}
}

func TestControllerRun_RetriesThenSucceeds(t *testing.T) {
	f := newFakeRenderer()
	f.add("https://example.com/", fakePage{title: "Home", links: []string{"/flaky"}})
	f.add("https://example.com/flaky", fakePage{title: "Flaky", timeouts: 2})

	cfg := testConfig("https://example.com")
	rep := &captureReporter{}
	c, err := New(cfg, f, rep, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Succeeded != 2 || summary.Failed != 0 {
		t.Errorf("succeeded/failed = %d/%d, want 2/0", summary.Succeeded, summary.Failed)
	}
	if got := f.callCount("https://example.com/flaky"); got != 3 {
		t.Errorf("renderer called %d times, want 3", got)
	}
}

func TestControllerRun_StructuralFailureDoesNotRetry(t *testing.T) {
	f := newFakeRenderer()
	f.add("https://example.com/", fakePage{title: "Home", links: []string{"/broken"}})
	f.add("https://example.com/broken", fakePage{renderer: true})

	cfg := testConfig("https://example.com")
	rep := &captureReporter{}
	c, err := New(cfg, f, rep, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := f.callCount("https://example.com/broken"); got != 1 {
		t.Errorf("renderer called %d times, want 1", got)
	}
	failures := rep.failures()
	if len(failures) != 1 || failures[0].ErrorKind != models.ErrCodeNavigation {
		t.Errorf("failures = %+v, want one NAVIGATION_FAILED", failures)
	}
}

func TestControllerRun_DepthCeilingRecordsEdgeWithoutFetching(t *testing.T) {
	f := newFakeRenderer()
	f.add("https://example.com/", fakePage{title: "Home", links: []string{"/a"}})
	f.add("https://example.com/a", fakePage{title: "A", links: []string{"/b"}})
	f.add("https://example.com/b", fakePage{title: "B"})

	cfg := testConfig("https://example.com")
	cfg.Crawl.MaxDepth = 1

	rep := &captureReporter{}
	c, err := New(cfg, f, rep, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Succeeded != 2 {
		t.Errorf("succeeded = %d, want 2", summary.Succeeded)
	}
	if summary.Edges != 2 {
		t.Errorf("edges = %d, want 2 (edge past the depth ceiling still recorded)", summary.Edges)
	}
	if got := f.callCount("https://example.com/b"); got != 0 {
		t.Errorf("URL past depth ceiling fetched %d times, want 0", got)
	}
}

func TestControllerRun_VisitedMatchesRecords(t *testing.T) {
	f := newFakeRenderer()
	f.add("https://example.com/", fakePage{title: "Home", links: []string{"/a", "/b", "/c"}})
	f.add("https://example.com/a", fakePage{title: "A", links: []string{"/b", "/d"}})
	f.add("https://example.com/b", fakePage{title: "B", links: []string{"/"}})
	f.add("https://example.com/c", fakePage{renderer: true})
	f.add("https://example.com/d", fakePage{title: "D", timeouts: -1})

	cfg := testConfig("https://example.com")
	cfg.Crawl.Workers = 4

	rep := &captureReporter{}
	c, err := New(cfg, f, rep, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := c.Graph().Snapshot()
	stats := c.FrontierStats()
	if len(snap.Pages) != stats.Visited {
		t.Errorf("records = %d, visited = %d, want equal", len(snap.Pages), stats.Visited)
	}
	if summary.Succeeded+summary.Failed != len(snap.Pages) {
		t.Errorf("summary counts %d+%d disagree with %d records",
			summary.Succeeded, summary.Failed, len(snap.Pages))
	}
	if summary.Succeeded != 3 || summary.Failed != 2 {
		t.Errorf("succeeded/failed = %d/%d, want 3/2", summary.Succeeded, summary.Failed)
	}

	// Every edge source must be a recorded page.
	ids := make(map[models.PageID]bool, len(snap.Pages))
	for _, p := range snap.Pages {
		ids[p.ID] = true
	}
	for _, e := range snap.Edges {
		if !ids[e.Source] {
			t.Errorf("edge source %d has no page record", e.Source)
		}
	}
}

func TestControllerRun_CancelDrains(t *testing.T) {
	f := newFakeRenderer()
	f.add("https://example.com/", fakePage{hang: true})

	cfg := testConfig("https://example.com")
	cfg.Crawl.MaxAttempts = 1
	cfg.Render.Timeout = 10 * time.Second

	rep := &captureReporter{}
	c, err := New(cfg, f, rep, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	summary, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Termination != "canceled" {
		t.Errorf("termination = %q, want canceled", summary.Termination)
	}
	failures := rep.failures()
	if len(failures) != 1 || failures[0].ErrorKind != models.ErrCodeCanceled {
		t.Errorf("failures = %+v, want one RUN_CANCELED", failures)
	}
	if c.State() != StateDone {
		t.Errorf("state = %v, want done", c.State())
	}
}

func TestControllerRun_ReporterErrorsDoNotAbort(t *testing.T) {
	f := newFakeRenderer()
	f.add("https://example.com/", fakePage{title: "Home", links: []string{"/a"}})
	f.add("https://example.com/a", fakePage{title: "A"})

	cfg := testConfig("https://example.com")
	rep := &captureReporter{fail: true}
	c, err := New(cfg, f, rep, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Succeeded != 2 {
		t.Errorf("succeeded = %d, want 2 despite reporter errors", summary.Succeeded)
	}
	if len(rep.finished) != 1 {
		t.Errorf("run_finished events = %d, want 1", len(rep.finished))
	}
}

func TestControllerRun_ProgressIsCumulative(t *testing.T) {
	f := newFakeRenderer()
	f.add("https://example.com/", fakePage{title: "Home", links: []string{"/a"}})
	f.add("https://example.com/a", fakePage{title: "A"})

	cfg := testConfig("https://example.com")
	rep := &captureReporter{}
	c, err := New(cfg, f, rep, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(rep.progress) != 2 {
		t.Fatalf("progress events = %d, want 2", len(rep.progress))
	}
	for i, p := range rep.progress {
		if p.PagesCrawled != i+1 {
			t.Errorf("progress[%d].PagesCrawled = %d, want %d", i, p.PagesCrawled, i+1)
		}
		if len(p.Graph.Pages) != i+1 {
			t.Errorf("progress[%d] snapshot has %d pages, want %d", i, len(p.Graph.Pages), i+1)
		}
	}
}

func TestNew_RejectsBadInput(t *testing.T) {
	f := newFakeRenderer()

	cfg := testConfig("not a url")
	if _, err := New(cfg, f, &captureReporter{}, nil); models.ErrorKind(err) != models.ErrCodeInvalidInput {
		t.Errorf("bad seed: error = %v, want INVALID_INPUT", err)
	}

	cfg = testConfig("https://example.com")
	cfg.Crawl.MaxPages = 0
	if _, err := New(cfg, f, &captureReporter{}, nil); models.ErrorKind(err) != models.ErrCodeInvalidInput {
		t.Errorf("zero ceiling: error = %v, want INVALID_INPUT", err)
	}
}

func TestControllerRun_RunsOnce(t *testing.T) {
	f := newFakeRenderer()
	f.add("https://example.com/", fakePage{title: "Home"})

	cfg := testConfig("https://example.com")
	c, err := New(cfg, f, &captureReporter{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if _, err := c.Run(context.Background()); err == nil {
		t.Error("second Run succeeded, want error")
	}
}
