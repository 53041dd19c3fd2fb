// Package probe checks crawl-graph edge targets that were never
// rendered. A cheap HTTP request is enough to tell a dead link from a
// page the crawl simply did not reach.
package probe

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"sync"

	tls2 "github.com/refraction-networking/utls"

	"github.com/use-agent/sitewalk/models"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Result is the probe outcome for one unvisited edge target.
type Result struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code,omitempty"`
	Dead       bool   `json:"dead"`
	Error      string `json:"error,omitempty"`
}

// Prober issues HEAD requests with a Chrome TLS fingerprint so probe
// traffic looks like the browser traffic that preceded it.
type Prober struct {
	client  *http.Client
	workers int
}

// New creates a Prober. proxy, if non-empty, routes probe requests.
func New(proxy string, workers int) *Prober {
	if workers < 1 {
		workers = 4
	}

	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLSChrome(ctx, network, addr)
		},
	}
	if proxy != "" {
		if proxyURL, err := url.Parse(proxy); err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	return &Prober{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				// A redirect means the target resolves; no need to follow.
				return http.ErrUseLastResponse
			},
		},
		workers: workers,
	}
}

// UnvisitedTargets returns the edge targets with no page record, sorted
// and deduplicated.
func UnvisitedTargets(snap models.Snapshot) []string {
	visited := make(map[string]bool, len(snap.Pages))
	for _, p := range snap.Pages {
		visited[p.URL] = true
	}

	seen := make(map[string]bool)
	var targets []string
	for _, e := range snap.Edges {
		if visited[e.Target] || seen[e.Target] {
			continue
		}
		seen[e.Target] = true
		targets = append(targets, e.Target)
	}
	sort.Strings(targets)
	return targets
}

// Check probes one URL. Servers that refuse HEAD get a GET with the
// body discarded.
func (p *Prober) Check(ctx context.Context, target string) Result {
	res := p.do(ctx, http.MethodHead, target)
	if res.Error != "" || res.StatusCode == http.StatusMethodNotAllowed {
		res = p.do(ctx, http.MethodGet, target)
	}
	return res
}

// CheckAll probes every unvisited edge target in snap with a bounded
// worker pool. Results come back in input order.
func (p *Prober) CheckAll(ctx context.Context, snap models.Snapshot) []Result {
	targets := UnvisitedTargets(snap)
	if len(targets) == 0 {
		return nil
	}

	results := make([]Result, len(targets))
	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = p.Check(ctx, target)
		}()
	}
	wg.Wait()
	return results
}

func (p *Prober) do(ctx context.Context, method, target string) Result {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return Result{URL: target, Dead: true, Error: err.Error()}
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{URL: target, Dead: true, Error: err.Error()}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	return Result{
		URL:        target,
		StatusCode: resp.StatusCode,
		Dead:       resp.StatusCode >= 400,
	}
}

// dialTLSChrome establishes a TLS connection using a Chrome fingerprint via utls.
func dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{}
	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls2.UClient(rawConn, &tls2.Config{
		ServerName: host,
	}, tls2.HelloChrome_Auto)

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}
