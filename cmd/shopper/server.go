package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/shopper/internal/api"
	"github.com/kalambet/shopper/internal/config"
	"github.com/kalambet/shopper/internal/conversation"
	"github.com/kalambet/shopper/internal/enrichment"
	"github.com/kalambet/shopper/internal/inference"
	"github.com/kalambet/shopper/internal/metrics"
	"github.com/kalambet/shopper/internal/pipeline"
	"github.com/kalambet/shopper/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the shopper server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running shopper server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show shopper server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "shopper.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func setupLogging(cfg config.Config) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
}

// openImageCache opens the SQLite image cache and drops entries older than the
// configured TTL. A nil store means caching is off.
func openImageCache(cfg config.Config) *storage.Store {
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		slog.Warn("image cache unavailable, continuing without it", "error", err)
		return nil
	}
	if cfg.Cache.ImageTTL > 0 {
		n, err := store.PurgeImagesBefore(time.Now().Add(-cfg.Cache.ImageTTL))
		if err != nil {
			slog.Warn("purging stale image cache entries", "error", err)
		} else if n > 0 {
			slog.Info("purged stale image cache entries", "count", n)
		}
	}
	return store
}

// newSearcher wires the inference client, optional image enrichment and the
// search pipeline from configuration.
func newSearcher(cfg config.Config, store *storage.Store, m *metrics.Metrics) *pipeline.Searcher {
	client := inference.NewClientWithBaseURL(cfg.Anthropic.APIKey, cfg.Anthropic.BaseURL, cfg.Anthropic.Timeout)

	var enricher pipeline.ImageEnricher
	if cfg.Enrichment.Enabled {
		opts := enrichment.Options{
			Model:       cfg.Anthropic.Model,
			MaxTokens:   cfg.Anthropic.ImageMaxTokens,
			Concurrency: cfg.Enrichment.Concurrency,
			CacheTTL:    cfg.Cache.ImageTTL,
			Metrics:     m,
		}
		if store != nil {
			opts.Cache = store
		}
		enricher = enrichment.NewEnricher(client, opts)
	}

	return pipeline.NewSearcher(client, enricher, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens, m)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "shopper version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	setupLogging(cfg)

	// Refuse to start twice on the same port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("shopper is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("shopper is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := openImageCache(cfg)
	if store != nil {
		defer func() {
			if err := store.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
			}
		}()
	}

	m := metrics.New()
	searcher := newSearcher(cfg, store, m)
	sessions := conversation.NewRegistry(searcher, cfg.Session.IdleTimeout, m)
	defer sessions.Close()

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewHandler(api.Deps{Searcher: searcher, Sessions: sessions, Metrics: m}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		printSuccess("shopper listening on http://%s", addr)
		slog.Info("server started", "addr", addr, "model", cfg.Anthropic.Model, "enrichment", cfg.Enrichment.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("shopper is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop shopper (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to shopper (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running at %s", serverURL)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if cfg.Anthropic.APIKey == "" {
		printStatus("API key", "%s", colorize(colorRed, "not set"))
	} else {
		printStatus("API key", "set")
	}
	printStatus("Model", "%s", cfg.Anthropic.Model)
	if cfg.Enrichment.Enabled {
		printStatus("Image search", "on (concurrency %d)", cfg.Enrichment.Concurrency)
	} else {
		printStatus("Image search", "off")
	}

	if store, err := storage.Open(cfg.Storage.DataDir); err == nil {
		if n, err := store.CountImages(); err == nil {
			printStatus("Cached images", "%d", n)
		}
		store.Close()
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
