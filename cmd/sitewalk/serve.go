package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/sitewalk/api"
	"github.com/use-agent/sitewalk/config"
	"github.com/use-agent/sitewalk/renderer"
	"github.com/use-agent/sitewalk/webhook"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the crawl API server",
		Long: `Serve starts an HTTP API that accepts crawl jobs and reports their
status:

  POST /api/v1/crawl      submit a crawl job
  GET  /api/v1/crawl/:id  poll a job for its summary and graph
  GET  /api/v1/health     browser pool health

One browser instance is shared across jobs; its page pool bounds
concurrent tabs.`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().String("host", "", "Listen host")
	cmd.Flags().Int("port", 0, "Listen port")
	cmd.Flags().StringP("config", "c", "", "YAML configuration file to overlay")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return err
		}
	}
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		cfg.Server.Host = v
	}
	if v, _ := cmd.Flags().GetInt("port"); v > 0 {
		cfg.Server.Port = v
	}

	initLogger(cfg.Log, getVerboseFlag(cmd))
	slog.Info("sitewalk starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"browserPages", cfg.Browser.MaxPages,
	)

	rend, err := renderer.NewRod(cfg.Browser, cfg.Render)
	if err != nil {
		return err
	}
	defer rend.Close()

	notifier := webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Secret)
	router := api.NewRouter(rend, cfg, notifier, time.Now())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// rend.Close() runs via defer: drains the page pool and kills Chrome.
	slog.Info("sitewalk stopped")
	return nil
}
