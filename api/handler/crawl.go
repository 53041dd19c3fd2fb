package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/sitewalk/config"
	"github.com/use-agent/sitewalk/crawler"
	"github.com/use-agent/sitewalk/models"
	"github.com/use-agent/sitewalk/renderer"
	"github.com/use-agent/sitewalk/report"
	"github.com/use-agent/sitewalk/webhook"
)

// crawlStore holds all in-flight and completed crawl jobs.
var crawlStore sync.Map

func init() {
	// Background goroutine to expire crawl jobs older than 1 hour.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-1 * time.Hour).Unix()
			crawlStore.Range(func(key, value any) bool {
				job := value.(*models.CrawlJob)
				if job.CreatedAt < cutoff {
					crawlStore.Delete(key)
				}
				return true
			})
		}
	}()
}

// PostCrawl returns a handler for POST /api/v1/crawl.
//
// The request is validated synchronously so a bad seed or scope fails
// with 400 before a job exists; the crawl itself runs in the background.
func PostCrawl(rend renderer.PageRenderer, cfg *config.Config, notifier *webhook.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CrawlRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.CrawlResponse{
				Status: "failed",
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "invalid request body: " + err.Error(),
				},
			})
			return
		}

		runCfg := mergeRequest(cfg, req)

		ctrl, err := crawler.New(runCfg, rend, report.Multi{report.Console{}}, nil)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.CrawlResponse{
				Status: "failed",
				Error:  errorDetail(err),
			})
			return
		}

		jobID := "crawl-" + randomID()
		job := &models.CrawlJob{
			ID:        jobID,
			Status:    "processing",
			Seed:      runCfg.Crawl.Seed,
			CreatedAt: time.Now().Unix(),
		}
		crawlStore.Store(jobID, job)

		go runJob(ctrl, job, notifier)

		c.JSON(http.StatusOK, models.CrawlResponse{
			ID:     jobID,
			Status: "processing",
		})
	}
}

// GetCrawl returns a handler for GET /api/v1/crawl/:id.
func GetCrawl() gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		val, ok := crawlStore.Load(jobID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "crawl job not found",
				},
			})
			return
		}
		c.JSON(http.StatusOK, val.(*models.CrawlJob))
	}
}

// runJob drives one crawl to completion and publishes the outcome.
func runJob(ctrl *crawler.Controller, job *models.CrawlJob, notifier *webhook.Notifier) {
	summary, err := ctrl.Run(context.Background())
	if err != nil {
		job.Status = "failed"
		job.Error = errorDetail(err)
		notifier.CrawlFailed(job.ID, err)
		slog.Error("crawl job failed", "id", job.ID, "error", err)
		return
	}

	snap := ctrl.Graph().Snapshot()
	job.Summary = summary
	job.Graph = &snap
	job.Status = "completed"
	notifier.CrawlCompleted(job.ID, *summary)

	slog.Info("crawl job finished",
		"id", job.ID,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"termination", summary.Termination,
	)
}

// mergeRequest copies the server configuration and applies the
// request's per-run overrides.
func mergeRequest(cfg *config.Config, req models.CrawlRequest) *config.Config {
	runCfg := *cfg
	runCfg.Crawl.Seed = req.Seed
	if req.MaxPages > 0 {
		runCfg.Crawl.MaxPages = req.MaxPages
	}
	if req.MaxDepth > 0 {
		runCfg.Crawl.MaxDepth = req.MaxDepth
	}
	if req.MaxAttempts > 0 {
		runCfg.Crawl.MaxAttempts = req.MaxAttempts
	}
	if req.Scope != "" {
		runCfg.Crawl.Scope = req.Scope
	}
	if len(req.AllowHosts) > 0 {
		runCfg.Crawl.AllowHosts = req.AllowHosts
	}
	return &runCfg
}

// errorDetail maps an internal error to the API error shape.
func errorDetail(err error) *models.ErrorDetail {
	var ce *models.CrawlError
	if errors.As(err, &ce) {
		return ce.ToDetail()
	}
	return &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()}
}

// randomID generates a short random hex string for job IDs.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
