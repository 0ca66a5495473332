// Command dommirror mirrors the buttons of a packaged page onto toolbar
// widgets and exposes them over HTTP and MCP.
//
// Usage:
//
//	dommirror -config dommirror.yaml
//	dommirror -data ./data -addr 127.0.0.1:8088 -script init.js
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/dommirror/addon"
	"github.com/hazyhaar/dommirror/contentscript"
	"github.com/hazyhaar/dommirror/dom"
	"github.com/hazyhaar/dommirror/host"
	"github.com/hazyhaar/dommirror/mirror"
)

func main() {
	configPath := flag.String("config", "", "path to dommirror.yaml config file")
	dataDir := flag.String("data", "", "package data directory (overrides config)")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	scriptPath := flag.String("script", "", "content script run after load (overrides config)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := mirror.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = mirror.LoadConfigFile(*configPath); err != nil {
			logger.Error("dommirror: load config", "error", err)
			os.Exit(1)
		}
	}
	if *dataDir != "" {
		cfg.Package.DataDir = *dataDir
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}
	if *scriptPath != "" {
		cfg.Script.Path = *scriptPath
	}

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("dommirror: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *mirror.Config) error {
	sinks, journals, err := mirror.SinksFromConfig(cfg.Sinks, os.Stdout, logger)
	if err != nil {
		return fmt.Errorf("sinks: %w", err)
	}

	pkg := addon.New(cfg.Package.ID, os.DirFS(cfg.Package.DataDir))
	windows := host.NewMediator()
	windows.Open("main")

	c, err := mirror.New(mirror.Options{
		Package: pkg,
		Locator: windows,
		Config:  cfg,
		Sinks:   sinks,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	doc := dom.NewDocument(dom.WithURL(c.PageURI()), dom.WithLogger(logger))
	defer func() {
		c.Close()
		doc.Close()
	}()

	// A failed load keeps observing: scripts and later mutations still mirror.
	if err := c.Load(ctx, doc); err != nil {
		logger.Warn("dommirror: load failed", "page", c.PageURI(), "error", err)
	}

	if cfg.Script.Path != "" {
		src, err := os.ReadFile(cfg.Script.Path)
		if err != nil {
			return fmt.Errorf("script: %w", err)
		}
		runner := contentscript.New(doc, contentscript.Config{Timeout: cfg.Script.Timeout, Logger: logger})
		if err := runner.Run(ctx, string(src)); err != nil {
			logger.Warn("dommirror: content script failed", "path", cfg.Script.Path, "error", err)
		}
	}

	mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "dommirror", Version: "1.0.0"}, nil)
	c.RegisterMCP(mcpSrv)

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	c.RegisterHTTP(r)
	if len(journals) > 0 {
		mirror.RegisterJournalHTTP(r, journals[0])
	}
	r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil))

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("dommirror: listening", "addr", cfg.HTTP.Addr, "page", c.PageURI(), "package", pkg.ID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("http: %w", err)
	}
	logger.Info("dommirror: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("dommirror: shutdown", "error", err)
	}
	return nil
}
