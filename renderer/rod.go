package renderer

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/sitewalk/config"
	"github.com/use-agent/sitewalk/models"
	"github.com/ysmood/gson"
)

// Rod renders pages through a shared headless browser with a reusable
// page pool. It is safe for concurrent use.
type Rod struct {
	browser     *rod.Browser
	pagePool    rod.Pool[rod.Page]
	browserCfg  config.BrowserConfig
	renderCfg   config.RenderConfig
	activePages atomic.Int32
}

// NewRod launches a headless browser and initialises the page pool.
func NewRod(browserCfg config.BrowserConfig, renderCfg config.RenderConfig) (*Rod, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.Proxy != "" {
		l = l.Proxy(browserCfg.Proxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewCrawlError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewCrawlError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	pool := rod.NewPagePool(browserCfg.MaxPages)
	slog.Info("page pool created", "maxPages", browserCfg.MaxPages)

	return &Rod{
		browser:    browser,
		pagePool:   pool,
		browserCfg: browserCfg,
		renderCfg:  renderCfg,
	}, nil
}

// Stats returns a snapshot of the pool's current state.
func (r *Rod) Stats() models.PoolStats {
	return models.PoolStats{
		MaxPages:    r.browserCfg.MaxPages,
		ActivePages: int(r.activePages.Load()),
	}
}

// Close drains the page pool and kills the browser process.
func (r *Rod) Close() {
	slog.Info("renderer shutting down: draining page pool")
	r.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	r.browser.MustClose()
	slog.Info("renderer shutdown complete")
}

// Render loads targetURL and extracts the page result.
//
// Lifecycle:
//
//  1. Acquire page        – borrow a tab from the pool (or create one)
//  2. DEFER: cleanup      – about:blank + return to pool (leak prevention)
//  3. Stealth injection   – mask navigator.webdriver etc. (before navigation!)
//  4. Hijack mount        – block fonts/media (before navigation!)
//  5. Context binding     – propagate the attempt deadline to all Rod calls
//  6. Navigate + wait     – page load, then DOM stability
//  7. Scroll through      – trigger lazy content so inventory and the
//     screenshot see the whole page
//  8. Extract             – dimensions, title, HTML, inventory, links
//  9. Screenshot          – full-page PNG (best-effort)
//
// Steps 3-4 must precede 6: stealth JS and resource blocking only apply
// to navigations that happen after they are installed. Step 2 uses the
// original page reference without the request context, so cleanup
// succeeds even after the deadline fired.
func (r *Rod) Render(ctx context.Context, targetURL string) (*Result, error) {
	start := time.Now()

	r.activePages.Add(1)
	defer r.activePages.Add(-1)

	page, acquireErr := r.pagePool.Get(func() (*rod.Page, error) {
		return r.browser.Page(proto.TargetCreateTarget{})
	})
	if acquireErr != nil {
		return nil, models.NewCrawlError(
			models.ErrCodeBrowserCrash,
			"failed to acquire page from pool",
			acquireErr,
		)
	}

	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		r.pagePool.Put(page)
	}()

	if r.renderCfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}

	router := setupHijack(page, r.renderCfg.BlockedResourceTypes)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	if navErr := p.Navigate(targetURL); navErr != nil {
		return nil, categorizeError(navErr, "navigation to target URL failed")
	}

	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		if ctx.Err() != nil {
			return nil, categorizeError(stableErr, "page did not become ready")
		}
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"error", stableErr)
	}

	scrollThrough(p)

	dim := pageDimensions(p)
	title := evalStringOrEmpty(p, `() => document.title`)
	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = targetURL
	}

	rawHTML, htmlErr := p.HTML()
	if htmlErr != nil {
		return nil, categorizeError(htmlErr, "failed to extract page HTML")
	}

	inventory := BuildInventory(rawHTML)
	links := ExtractLinks(rawHTML)

	// Screenshot failures degrade the record, never the page.
	shot, shotErr := p.Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if shotErr != nil {
		slog.Warn("full-page screenshot failed", "url", targetURL, "error", shotErr)
		shot = nil
	}

	return &Result{
		FinalURL:   finalURL,
		Title:      title,
		Dim:        dim,
		Inventory:  inventory,
		Links:      links,
		Screenshot: shot,
		Duration:   time.Since(start),
	}, nil
}

// scrollThrough walks the viewport down the page and back up so lazy
// content loads before extraction. Best-effort.
func scrollThrough(p *rod.Page) {
	_, err := p.Eval(`() => new Promise(resolve => {
		const step = window.innerHeight;
		let y = 0;
		const timer = setInterval(() => {
			y += step;
			window.scrollTo(0, y);
			if (y >= document.documentElement.scrollHeight) {
				clearInterval(timer);
				window.scrollTo(0, 0);
				resolve();
			}
		}, 100);
	})`)
	if err != nil {
		slog.Debug("scroll-through failed", "error", err)
	}
}

// pageDimensions reads the full document size in pixels.
func pageDimensions(p *rod.Page) models.Dimensions {
	res, err := p.Eval(`() => ({
		w: Math.max(document.documentElement.scrollWidth, document.body.scrollWidth),
		h: Math.max(document.documentElement.scrollHeight, document.body.scrollHeight),
	})`)
	if err != nil {
		return models.Dimensions{}
	}
	return decodeDimensions(res.Value)
}

// decodeDimensions pulls width/height out of an Eval result object.
func decodeDimensions(v gson.JSON) models.Dimensions {
	return models.Dimensions{
		Width:  v.Get("w").Int(),
		Height: v.Get("h").Int(),
	}
}

// evalStringOrEmpty evaluates a JS expression and returns the string
// result, swallowing any errors (optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}
