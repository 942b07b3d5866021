// Package main serves a local collection resource for datagrid.
//
// Items are stored in a JSONL file under -data-dir and exposed at -path with
// the same GET/POST/PUT/DELETE contract as a hosted REST collection.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/maruel/datagrid/internal/buildinfo"
	"github.com/maruel/datagrid/internal/logging"
	"github.com/maruel/datagrid/internal/ratelimit"
	"github.com/maruel/datagrid/internal/sandbox"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "datagrid-sandbox: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	httpAddr := flag.String("http", "localhost:8080", "Address to listen on (e.g., localhost:8080, :8080, 0.0.0.0:8080)")
	dataDir := flag.String("data-dir", "./data", "Data directory")
	collection := flag.String("path", "/items", "Collection path")
	seed := flag.Bool("seed", false, "Store sample posts if the collection is empty")
	rps := flag.Float64("rps", 20, "Requests per second allowed per client IP; 0 disables rate limiting")
	burst := flag.Int("burst", 40, "Burst size of the per client rate limit")
	trustedProxies := flag.String("trusted-proxies", "", "Comma separated IPs or CIDRs whose X-Forwarded-For is trusted for rate limiting")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		buildinfo.Print(os.Stdout, "datagrid-sandbox")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	slog.SetDefault(logging.New(ll))
	if err := logging.SetLevel(ll, *logLevel); err != nil {
		return err
	}

	srv, err := sandbox.Open(filepath.Join(*dataDir, "items.jsonl"))
	if err != nil {
		return fmt.Errorf("failed to open items table: %w", err)
	}
	if *seed {
		if _, err := srv.Seed(ctx); err != nil {
			return fmt.Errorf("failed to seed items: %w", err)
		}
	}

	trusted, err := ratelimit.ParseTrustedProxies(*trustedProxies)
	if err != nil {
		return err
	}
	limiter := ratelimit.NewLimiter(*rps, *burst)
	limiter.TrustProxies(trusted)
	if limiter != nil {
		go limiter.Run(ctx)
	}

	// Watch own executable for modifications (for development restarts)
	if err := watchExecutable(ctx, stop); err != nil {
		return fmt.Errorf("failed to watch executable: %w", err)
	}

	// Normalize addr: ":8080" becomes "localhost:8080"
	addr := *httpAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(*collection, limiter),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", addr, "path", *collection, "version", buildinfo.Get().Version)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}

// watchExecutable cancels the server when its binary is rebuilt.
func watchExecutable(ctx context.Context, stop context.CancelFunc) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(exe); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
					slog.InfoContext(ctx, "Executable modified, initiating shutdown")
					stop()
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching executable", "err", err)
			}
		}
	}()
	return nil
}
