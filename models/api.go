package models

// CrawlRequest is the body of POST /api/v1/crawl. Zero values fall
// back to the server's configured defaults.
type CrawlRequest struct {
	Seed        string   `json:"seed" binding:"required"`
	MaxPages    int      `json:"max_pages,omitempty"`
	MaxDepth    int      `json:"max_depth,omitempty"`
	MaxAttempts int      `json:"max_attempts,omitempty"`
	Scope       string   `json:"scope,omitempty"` // "host" or "subdomain"
	AllowHosts  []string `json:"allow_hosts,omitempty"`
}

// CrawlResponse acknowledges an accepted crawl job.
type CrawlResponse struct {
	ID     string       `json:"id,omitempty"`
	Status string       `json:"status"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}
