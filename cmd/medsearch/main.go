package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dshills/medsearch-mcp/internal/api"
	"github.com/dshills/medsearch-mcp/internal/cache"
	"github.com/dshills/medsearch-mcp/internal/config"
	"github.com/dshills/medsearch-mcp/internal/httpapi"
	"github.com/dshills/medsearch-mcp/internal/mcp"
	"github.com/dshills/medsearch-mcp/internal/searcher"
	"github.com/dshills/medsearch-mcp/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Handle version flag
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("Medsearch MCP Server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// stdout is reserved for the MCP protocol
	logger := newLogger(os.Stderr, cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("medsearch starting",
		"version", version,
		"transport", cfg.Transport.Mode,
		"store", cfg.Store.Backend,
		"build_mode", storage.BuildMode,
	)

	store, err := storage.Open(ctx, storage.Config{
		Backend:    storage.Backend(cfg.Store.Backend),
		SessionID:  cfg.Store.SessionID,
		Path:       cfg.Store.Path,
		RedisURL:   cfg.Store.RedisURL,
		SessionTTL: cfg.Store.SessionTTL,
	})
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close session store", "error", err)
		}
	}()

	client, err := api.NewClient(cfg.API.URL, api.Options{
		Timeout:   cfg.API.Timeout,
		Retry:     retryConfig(cfg.API.RetryAttempts),
		Logger:    logger,
		UserAgent: "medsearch-mcp/" + version,
	})
	if err != nil {
		return fmt.Errorf("create api client: %w", err)
	}

	manager := cache.NewManager(client, store, cache.Options{
		TTL:          cfg.Cache.TTL,
		FetchTimeout: cfg.API.Timeout,
		Logger:       logger,
	})

	snap := manager.Initialize(ctx, false)
	logger.Info("reference data ready",
		"from_cache", snap.FromCache,
		"pathways", len(snap.Pathways),
		"canonical_services", len(snap.CanonicalServices),
		"popular_services", len(snap.PopularServices),
		"providers", len(snap.Providers),
	)

	if spec := strings.TrimSpace(cfg.Cache.RefreshSchedule); spec != "" {
		refresher := cache.NewRefresher(manager, spec, logger)
		if err := refresher.Start(ctx); err != nil {
			return err
		}
		defer refresher.Stop()
	}

	srch := searcher.NewSearcher(client, searcher.Options{
		SearchTTL:      cfg.Cache.SearchTTL,
		SmartSearchTTL: cfg.Cache.SmartSearchTTL,
		QueryCacheSize: cfg.Cache.QueryCacheSize,
		Logger:         logger,
	})

	switch cfg.Transport.Mode {
	case config.TransportHTTP:
		server, err := httpapi.NewServer(cfg.Transport.HTTPAddr, srch, manager, logger)
		if err != nil {
			return fmt.Errorf("create http server: %w", err)
		}
		return server.Serve(ctx)
	default:
		server, err := mcp.NewServer(srch, manager, logger)
		if err != nil {
			return fmt.Errorf("create MCP server: %w", err)
		}
		return server.Serve(ctx)
	}
}

func retryConfig(attempts int) api.RetryConfig {
	retry := api.DefaultRetryConfig()
	if attempts > 0 {
		retry.MaxAttempts = attempts
	}
	return retry
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
