// Static content host for the browser test page.
//
// Serves a directory over HTTP with the Cross-Origin-Embedder-Policy and
// Cross-Origin-Opener-Policy headers that threaded WebAssembly builds
// require. Run it next to the emscripten output, then point cmd/webtest
// at it.
//
// Usage:
//
//	webserver [-root dir] [-watch] [-metrics /metrics] [-v] [port]
//
// The port defaults to 8000.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thesyncim/webtest/cmd/webserver/server"
)

const defaultPort = 8000

func main() {
	root := flag.String("root", ".", "directory to serve")
	watch := flag.Bool("watch", false, "log changed files and disable caching")
	metricsPath := flag.String("metrics", "", "serve Prometheus metrics at this path")
	verbose := flag.Bool("v", false, "log every request")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [port]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	port, err := parsePort(flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := server.DefaultConfig()
	cfg.Addr = fmt.Sprintf(":%d", port)
	cfg.Root = *root
	cfg.Watch = *watch
	cfg.MetricsPath = *metricsPath
	cfg.Logger = logger

	if err := serve(cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func parsePort(args []string) (int, error) {
	if len(args) == 0 {
		return defaultPort, nil
	}
	port, err := strconv.Atoi(args[0])
	if err != nil || port < 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", args[0])
	}
	return port, nil
}

func serve(cfg server.Config, logger *slog.Logger) error {
	srv, err := server.NewServer(cfg)
	if err != nil {
		return err
	}
	addr, err := srv.Start()
	if err != nil {
		return err
	}
	logger.Info("Serving HTTP", "addr", addr, "root", cfg.Root, "watch", cfg.Watch)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Wait)
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	})
	return g.Wait()
}
