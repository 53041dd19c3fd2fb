// Package api wires the HTTP surface for serve mode: job submission,
// job polling, and health.
package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/sitewalk/api/handler"
	"github.com/use-agent/sitewalk/config"
	"github.com/use-agent/sitewalk/renderer"
	"github.com/use-agent/sitewalk/webhook"
)

// Renderer is the browser dependency the router needs: page rendering
// plus pool statistics for health reporting.
type Renderer interface {
	renderer.PageRenderer
	handler.PoolStatser
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain: Recovery → Logger. The health endpoint stays open
// so monitoring probes always work.
func NewRouter(rend Renderer, cfg *config.Config, notifier *webhook.Notifier, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(rend, startTime))

	v1.POST("/crawl", handler.PostCrawl(rend, cfg, notifier))
	v1.GET("/crawl/:id", handler.GetCrawl())

	return r
}
