// Browser test launcher.
//
// Loads the udTest page served by cmd/webserver in the selected browser,
// waits for the in-page test run to finish, prints its log and exits with
// the page's EXITSTATUS (or -1 on any failure).
//
// Usage:
//
//	webtest [flags] chrome|firefox|edge|safari|safaritp
//	webtest [flags] remote <address>
//
// Driver binaries are looked up in $GECKOWEBDRIVER, $CHROMEWEBDRIVER and
// $EDGEWEBDRIVER when set, otherwise on PATH.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thesyncim/webtest/pkg/launcher"
)

const prog = "webtest"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(prog, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML file overriding the default page contract")
	host := fs.String("host", "", "host serving the test page (default 127.0.0.1)")
	port := fs.Int("port", 0, "port serving the test page (default 8000)")
	timeout := fs.Duration("timeout", 0, "how long to wait for the test run (default 30s)")
	headful := fs.Bool("headful", false, "show the browser window")
	verbose := fs.Bool("v", false, "enable debug logging")
	fs.Usage = func() {
		launcher.Usage(stdout, prog)
		fmt.Fprintln(stdout, "\nFlags:")
		fs.SetOutput(stdout)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return launcher.FailureStatus
	}

	sel, err := launcher.ParseArgs(fs.Args())
	if err != nil {
		launcher.Usage(stdout, prog)
		return launcher.FailureStatus
	}

	cfg := launcher.DefaultConfig()
	if *configPath != "" {
		if cfg, err = launcher.LoadConfig(*configPath); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", prog, err)
			return launcher.FailureStatus
		}
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *timeout != 0 {
		cfg.Timeout = *timeout
	}
	if *headful {
		cfg.Headless = false
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", prog, err)
		return launcher.FailureStatus
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	l := launcher.New(cfg, launcher.WithOutput(stdout), launcher.WithLogger(logger))
	res := l.Launch(ctx, sel)
	logger.Debug("Launcher done", "elapsed", time.Since(start), "final", res.Final().String())
	return res.Status
}
