package models

import "time"

// PageFailure describes a page that exhausted its attempt budget or hit
// a structural render error. Failed pages stay in the graph and the run
// continues.
type PageFailure struct {
	URL       string `json:"url"`
	ErrorKind string `json:"error_kind"`
	Attempts  int    `json:"attempts"`
}

// Progress is the cumulative snapshot emitted after every page.
type Progress struct {
	PagesCrawled int              `json:"pages_crawled"`
	LatestURL    string           `json:"latest_url"`
	LatestTitle  string           `json:"latest_title"`
	Inventory    ElementInventory `json:"inventory"`
	Graph        Snapshot         `json:"graph"`
}

// Summary is the terminal result of a crawl run.
type Summary struct {
	Seed        string        `json:"seed"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Edges       int           `json:"edges"`
	Duration    time.Duration `json:"duration"`
	Termination string        `json:"termination"` // "exhausted", "page_ceiling", "canceled"
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
}

// CrawlJob tracks an in-progress crawl run started via the API.
type CrawlJob struct {
	ID        string       `json:"id"`
	Status    string       `json:"status"` // "processing", "completed", "failed"
	Seed      string       `json:"seed"`
	Summary   *Summary     `json:"summary,omitempty"`
	Graph     *Snapshot    `json:"graph,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	CreatedAt int64        `json:"created_at"` // unix timestamp
}
