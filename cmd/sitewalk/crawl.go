package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/sitewalk/config"
	"github.com/use-agent/sitewalk/crawler"
	"github.com/use-agent/sitewalk/probe"
	"github.com/use-agent/sitewalk/renderer"
	"github.com/use-agent/sitewalk/report"
	"github.com/use-agent/sitewalk/store"
	"github.com/use-agent/sitewalk/webhook"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <seed-url>",
		Short: "Crawl a site breadth-first from a seed URL",
		Long: `Crawl renders the seed URL in a headless browser, inventories its
interactive elements, screenshots it, and follows same-site links
breadth-first until the page ceiling, the depth ceiling, or frontier
exhaustion stops the run.

Examples:
  # Crawl with defaults (100 pages, depth 3, 4 workers)
  sitewalk crawl https://example.com

  # Small bounded crawl
  sitewalk crawl --max-pages 10 --depth 1 https://example.com

  # Include sibling subdomains and persist the graph
  sitewalk crawl --scope subdomain --sqlite crawl.db https://example.com

  # Overlay settings from a YAML file
  sitewalk crawl -c sitewalk.yaml https://example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCmd,
	}

	cmd.Flags().IntP("max-pages", "p", 0, "Page ceiling for the run")
	cmd.Flags().IntP("depth", "d", 0, "Maximum link depth from the seed")
	cmd.Flags().IntP("attempts", "a", 0, "Attempt budget per page (timeout retries)")
	cmd.Flags().IntP("workers", "w", 0, "Concurrent fetch workers")
	cmd.Flags().DurationP("timeout", "t", 0, "Per-attempt render timeout")
	cmd.Flags().StringP("scope", "s", "", "Link scope: host or subdomain")
	cmd.Flags().StringSlice("allow-hosts", nil, "Extra hosts to treat as in scope")
	cmd.Flags().Float64("rate", 0, "Sustained fetch rate in pages per second (0 = unthrottled)")
	cmd.Flags().StringP("out", "o", "", "Output directory for the crawl log and screenshots")
	cmd.Flags().StringP("config", "c", "", "YAML configuration file to overlay")
	cmd.Flags().String("sqlite", "", "Persist the final graph to this SQLite file")
	cmd.Flags().Bool("probe-dead-links", false, "Probe unvisited edge targets after the crawl")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCrawlConfig(cmd, args[0])
	if err != nil {
		return err
	}

	initLogger(cfg.Log, getVerboseFlag(cmd))

	// Output artifacts: markdown log and screenshots under one directory.
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	logPath := filepath.Join(cfg.Output.Dir, cfg.Output.LogFile)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open crawl log: %w", err)
	}
	defer logFile.Close()

	mdLog, err := report.NewMarkdownLog(logFile)
	if err != nil {
		return err
	}
	shots, err := report.NewScreenshotWriter(filepath.Join(cfg.Output.Dir, cfg.Output.ScreenshotDir))
	if err != nil {
		return err
	}

	rend, err := renderer.NewRod(cfg.Browser, cfg.Render)
	if err != nil {
		return err
	}
	defer rend.Close()

	ctrl, err := crawler.New(cfg, rend, report.Multi{report.Console{}, mdLog}, shots)
	if err != nil {
		return err
	}

	// Ctrl-C drains in-flight pages instead of dropping them.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := ctrl.Run(ctx)
	if err != nil {
		return err
	}
	snap := ctrl.Graph().Snapshot()

	if cfg.Output.SQLitePath != "" {
		db, err := store.Open(cfg.Output.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		runID, err := db.SaveRun(*summary, snap)
		if err != nil {
			return err
		}
		slog.Info("graph persisted", "path", cfg.Output.SQLitePath, "runID", runID)
	}

	if cfg.Crawl.ProbeDeadLinks {
		results := probe.New(cfg.Browser.Proxy, cfg.Crawl.Workers).CheckAll(ctx, snap)
		dead := 0
		for _, r := range results {
			if r.Dead {
				dead++
				slog.Warn("dead link", "url", r.URL, "status", r.StatusCode, "error", r.Error)
			}
		}
		slog.Info("dead-link probe finished", "checked", len(results), "dead", dead)
	}

	if notifier := webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Secret); notifier.Enabled() {
		notifier.CrawlCompleted("crawl-cli-"+summary.StartedAt.Format("20060102150405"), *summary)
		// Async delivery retries for up to ~36s; give it a moment.
		time.Sleep(100 * time.Millisecond)
	}

	slog.Info("crawl log written", "path", logPath)
	return nil
}

// buildCrawlConfig resolves configuration precedence:
// defaults < environment < YAML file < flags.
func buildCrawlConfig(cmd *cobra.Command, seed string) (*config.Config, error) {
	cfg := config.Load()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Crawl.Seed = seed
	if v, _ := cmd.Flags().GetInt("max-pages"); v > 0 {
		cfg.Crawl.MaxPages = v
	}
	if v, _ := cmd.Flags().GetInt("depth"); v > 0 {
		cfg.Crawl.MaxDepth = v
	}
	if v, _ := cmd.Flags().GetInt("attempts"); v > 0 {
		cfg.Crawl.MaxAttempts = v
	}
	if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
		cfg.Crawl.Workers = v
	}
	if v, _ := cmd.Flags().GetDuration("timeout"); v > 0 {
		cfg.Render.Timeout = v
	}
	if v, _ := cmd.Flags().GetString("scope"); v != "" {
		cfg.Crawl.Scope = v
	}
	if v, _ := cmd.Flags().GetStringSlice("allow-hosts"); len(v) > 0 {
		cfg.Crawl.AllowHosts = v
	}
	if cmd.Flags().Changed("rate") {
		v, _ := cmd.Flags().GetFloat64("rate")
		cfg.Crawl.FetchRate = v
	}
	if v, _ := cmd.Flags().GetString("out"); v != "" {
		cfg.Output.Dir = v
	}
	if v, _ := cmd.Flags().GetString("sqlite"); v != "" {
		cfg.Output.SQLitePath = v
	}
	if v, _ := cmd.Flags().GetBool("probe-dead-links"); v {
		cfg.Crawl.ProbeDeadLinks = true
	}

	return cfg, nil
}
