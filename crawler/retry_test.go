package crawler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/sitewalk/models"
	"github.com/use-agent/sitewalk/renderer"
)

// fakePage scripts the renderer's behavior for one URL.
type fakePage struct {
	title    string
	links    []string
	timeouts int  // attempts that time out before success; -1 = always
	renderer bool // structural render failure instead of timeout
	hang     bool // block until the context is done
}

// fakeRenderer is a scripted PageRenderer for controller and retry tests.
type fakeRenderer struct {
	mu    sync.Mutex
	pages map[string]*fakePage
	calls map[string]int
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		pages: make(map[string]*fakePage),
		calls: make(map[string]int),
	}
}

func (f *fakeRenderer) add(url string, p fakePage) {
	f.pages[url] = &p
}

func (f *fakeRenderer) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeRenderer) Render(ctx context.Context, url string) (*renderer.Result, error) {
	f.mu.Lock()
	f.calls[url]++
	call := f.calls[url]
	page := f.pages[url]
	f.mu.Unlock()

	if page == nil {
		return nil, models.NewCrawlError(models.ErrCodeNavigation, "unknown page", nil)
	}
	if page.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if page.renderer {
		return nil, models.NewCrawlError(models.ErrCodeNavigation, "navigation refused", nil)
	}
	if page.timeouts < 0 || call <= page.timeouts {
		return nil, models.NewCrawlError(models.ErrCodeTimeout, "render deadline", context.DeadlineExceeded)
	}

	return &renderer.Result{
		FinalURL:  url,
		Title:     page.title,
		Dim:       models.Dimensions{Width: 1280, Height: 2000},
		Inventory: models.ElementInventory{Links: len(page.links)},
		Links:     page.links,
		Duration:  5 * time.Millisecond,
	}, nil
}

func TestFetchWithRetry_SucceedsAfterTimeouts(t *testing.T) {
	f := newFakeRenderer()
	f.add("https://example.com/a", fakePage{title: "A", timeouts: 2})

	res, attempts, err := FetchWithRetry(context.Background(), f, "https://example.com/a", 3, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if res.Title != "A" {
		t.Errorf("title = %q, want A", res.Title)
	}
}

func TestFetchWithRetry_ExhaustsBudget(t *testing.T) {
	f := newFakeRenderer()
	f.add("https://example.com/a", fakePage{timeouts: -1})

	_, attempts, err := FetchWithRetry(context.Background(), f, "https://example.com/a", 3, 100*time.Millisecond)
	if attempts != 3 {
		t.Errorf("attempts = %d, want exactly 3", attempts)
	}
	if got := f.callCount("https://example.com/a"); got != 3 {
		t.Errorf("renderer called %d times, want 3", got)
	}

	var exhausted *TimeoutExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error = %v, want TimeoutExhaustedError", err)
	}
	if exhausted.URL != "https://example.com/a" || exhausted.Attempts != 3 {
		t.Errorf("exhausted = %+v", exhausted)
	}
}

func TestFetchWithRetry_FailsFastOnStructuralError(t *testing.T) {
	f := newFakeRenderer()
	f.add("https://example.com/a", fakePage{renderer: true})

	_, attempts, err := FetchWithRetry(context.Background(), f, "https://example.com/a", 3, 100*time.Millisecond)
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on structural failure)", attempts)
	}
	if kind := models.ErrorKind(err); kind != models.ErrCodeNavigation {
		t.Errorf("error kind = %q, want NAVIGATION_FAILED", kind)
	}
}

func TestFetchWithRetry_RespectsCanceledContext(t *testing.T) {
	f := newFakeRenderer()
	f.add("https://example.com/a", fakePage{title: "A"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, attempts, err := FetchWithRetry(ctx, f, "https://example.com/a", 3, 100*time.Millisecond)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if attempts != 0 {
		t.Errorf("attempts = %d, want 0", attempts)
	}
	if got := f.callCount("https://example.com/a"); got != 0 {
		t.Errorf("renderer called %d times after cancel, want 0", got)
	}
}
