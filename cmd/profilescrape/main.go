// Command profilescrape serves authenticated profile scrapes over HTTP, or
// over MCP on stdio.
//
// Usage:
//
//	profilescrape                           # HTTP on $PORT (default 4000)
//	profilescrape -config profilescrape.yaml
//	profilescrape -mcp-stdio                # MCP tool profilescrape_scrape on stdin/stdout
//
// Credentials come from SCRAPE_IDENTIFIER/SCRAPE_SECRET (or LINKEDIN_EMAIL/
// LINKEDIN_PASSWORD). Flags override the environment, which overrides the
// YAML file.
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

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/linkscrape/profilescrape"
)

var version = "dev"

type flags struct {
	config    string
	addr      string
	cookies   string
	backend   string
	chrome    string
	remote    string
	logLevel  string
	noSandbox bool
	headful   bool
	mcpStdio  bool
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", os.Getenv("CONFIG"), "path to YAML config file")
	flag.StringVar(&f.addr, "addr", "", "HTTP listen address (overrides PORT)")
	flag.StringVar(&f.cookies, "cookies", "", "cookie jar path (overrides COOKIE_PATH)")
	flag.StringVar(&f.backend, "cookie-backend", "", "cookie jar backend: file, sqlite")
	flag.StringVar(&f.chrome, "chrome", "", "Chromium executable (overrides CHROME_PATH)")
	flag.StringVar(&f.remote, "remote", "", "DevTools URL of a running Chromium")
	flag.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flag.BoolVar(&f.noSandbox, "no-sandbox", false, "disable the Chromium sandbox")
	flag.BoolVar(&f.headful, "headful", false, "show the browser window")
	flag.BoolVar(&f.mcpStdio, "mcp-stdio", false, "serve MCP on stdin/stdout instead of HTTP")
	flag.Parse()

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "profilescrape:", err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg, f.mcpStdio); err != nil {
		logger.Error("profilescrape: fatal", "error", err)
		os.Exit(1)
	}
}

// loadConfig layers flags over the environment over the YAML file.
func loadConfig(f flags) (profilescrape.Config, error) {
	cfg := profilescrape.DefaultConfig()
	if f.config != "" {
		var err error
		if cfg, err = profilescrape.LoadConfigFile(f.config); err != nil {
			return cfg, err
		}
	}
	cfg.ApplyEnv()

	if f.addr != "" {
		cfg.Server.Addr = f.addr
	}
	if f.cookies != "" {
		cfg.Cookies.Path = f.cookies
	}
	if f.backend != "" {
		cfg.Cookies.Backend = f.backend
	}
	if f.chrome != "" {
		cfg.Browser.Bin = f.chrome
	}
	if f.remote != "" {
		cfg.Browser.Remote = f.remote
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.noSandbox {
		cfg.Browser.NoSandbox = true
	}
	if f.headful {
		cfg.Browser.NoHeadless = true
	}
	return cfg, cfg.Validate()
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg profilescrape.Config, mcpStdio bool) error {
	if !cfg.Credentials.Present() {
		logger.Warn("profilescrape: no credentials in environment, logins will fail", "credentials", cfg.Credentials)
	}

	mgr := profilescrape.NewBrowser(cfg.Browser, logger)
	defer mgr.Close()
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}

	s, err := profilescrape.New(cfg, mgr, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	if mcpStdio {
		return runMCP(ctx, logger, s)
	}
	return runHTTP(ctx, logger, cfg, s)
}

func runMCP(ctx context.Context, logger *slog.Logger, s *profilescrape.Scraper) error {
	srv := mcp.NewServer(&mcp.Implementation{Name: "profilescrape", Version: version}, nil)
	s.RegisterMCP(srv)
	logger.Info("profilescrape: serving MCP on stdio")
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}

func runHTTP(ctx context.Context, logger *slog.Logger, cfg profilescrape.Config, s *profilescrape.Scraper) error {
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.CallTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("profilescrape: listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("profilescrape: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
