// Command scrape runs a pipeline file: it resolves each source (cache first),
// extracts the configured record and dataset, applies filters, computes
// statistics and radar bounds, and prints the result.
//
// Usage:
//
//	scrape -config configs/barca_playing_time.yaml
//	scrape -config configs/laliga_gf_ga.yaml -format table
//
// Validate a pipeline without touching the network:
//
//	scrape -config configs/scout_comparison.yaml -validate
//
// Extract a directory of saved pages with a pipeline's schema:
//
//	scrape -config configs/barca_playing_time.yaml -dir ./assets
//
// Debug (print matches for a selector, or list every table on a page):
//
//	cat page.html | scrape -selector "table#stats_standard_12 tbody tr" -text
//	scrape -url "https://fbref.com/en/comps/12/La-Liga-Stats" -tables
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"statscrape/internal/config"
	"statscrape/internal/extracthtml"
	"statscrape/internal/pipeline"
	"statscrape/internal/source"

	// register all backends with the storage factory.
	_ "statscrape/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, nil)
	stop()
	os.Exit(code)
}

// run is split out from main so the command is testable without spawning a
// process. httpClient may be nil, in which case one is built from the
// pipeline's fetch settings.
//
// It returns a Unix-style exit code:
//   - 0 for success
//   - 2 for usage/config errors
//   - 1 for operational/runtime errors
func run(
	ctx context.Context,
	args []string,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
	httpClient *http.Client,
) int {
	fs := flag.NewFlagSet("scrape", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfgPath := fs.String("config", "", "pipeline file (.yaml, .yml, .json, .json5)")
	format := fs.String("format", "json", "output format: json, csv or table")
	cacheDir := fs.String("cache-dir", "", "override fetch.cache_dir")
	validate := fs.Bool("validate", false, "validate the configuration and exit")
	metricsBackend := fs.String("metrics-backend", "", "metrics backend: none, datadog or pushgateway (env METRICS_BACKEND)")
	pushGatewayURL := fs.String("pushgateway-url", "", "Pushgateway base URL (env PUSHGATEWAY_URL)")
	dirFlag := fs.String("dir", "", "extract every saved page in this directory with the pipeline schema")
	debugSelector := fs.String("selector", "", "Debug: CSS selector to print matches for")
	onlyText := fs.Bool("text", false, "Debug: print text instead of outer HTML for -selector matches")
	dumpTables := fs.Bool("tables", false, "Debug: list every table with its id, classes and headers")
	urlFlag := fs.String("url", "", "Debug: fetch HTML from URL instead of stdin")
	timeout := fs.Duration("timeout", 20*time.Second, "Debug: timeout for -url fetch")
	verbose := fs.Bool("v", false, "enable debug logs")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	switch *format {
	case formatJSON, formatCSV, formatTable:
	default:
		fmt.Fprintf(stderr, "unknown -format %q (want json, csv or table)\n", *format)
		return 2
	}

	// Debug modes need HTML input (stdin or url) but no pipeline.
	if *debugSelector != "" || *dumpTables {
		body, err := loadDebugHTML(ctx, *urlFlag, stdin, httpClient, *timeout, logger)
		if err != nil {
			fmt.Fprintf(stderr, "load html: %v\n", err)
			return 1
		}
		if *dumpTables {
			err = extracthtml.DumpTables(stdout, body)
		} else {
			err = extracthtml.DebugPrintSelector(stdout, body, *debugSelector, *onlyText)
		}
		if err != nil {
			fmt.Fprintf(stderr, "debug: %v\n", err)
			return 1
		}
		return 0
	}

	if *cfgPath == "" {
		fmt.Fprintf(stderr, "missing -config\n")
		return 2
	}
	p, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 2
	}
	if *cacheDir != "" {
		if p.Bounds != nil && p.Bounds.Cache == defaultBoundsCache(p.Fetch.CacheDir) {
			p.Bounds.Cache = defaultBoundsCache(*cacheDir)
		}
		p.Fetch.CacheDir = *cacheDir
	}

	issues := config.ValidatePipeline(*p)
	for _, iss := range issues {
		fmt.Fprintln(stderr, iss.String())
	}
	if config.HasErrors(issues) {
		fmt.Fprintf(stderr, "configuration is invalid: %s\n", *cfgPath)
		return 2
	}
	if *validate {
		fmt.Fprintf(stdout, "configuration is valid: %s\n", *cfgPath)
		return 0
	}

	if *dirFlag != "" {
		if p.Schema == nil {
			fmt.Fprintf(stderr, "-dir requires a pipeline with a schema\n")
			return 2
		}
		ds, err := extracthtml.ExtractDir(ctx, *dirFlag, p.Fetch.CacheSuffix, *p.Schema, extracthtml.Options{})
		if err != nil {
			fmt.Fprintf(stderr, "dir extract: %v\n", err)
			return 1
		}
		if err := writeDataset(stdout, ds, *format, p.Job); err != nil {
			fmt.Fprintf(stderr, "write output: %v\n", err)
			return 1
		}
		return 0
	}

	stopMetrics := setupMetrics(ctx, *metricsBackend, *pushGatewayURL, p.Job, logger)
	defer stopMetrics()

	resolvers, err := buildResolvers(ctx, p, httpClient, logger)
	if err != nil {
		fmt.Fprintf(stderr, "fetch setup: %v\n", err)
		return 1
	}
	defer resolvers.Close()

	runner := pipeline.NewDefaultRunner(resolvers.Cached, logger)
	runner.LinkResolver = resolvers.Upstream

	start := time.Now()
	res, err := runner.Run(ctx, p)
	if err != nil {
		fmt.Fprintf(stderr, "run %s: %v\n", p.Job, err)
		return 1
	}
	logger.Info("completed", "job", p.Job, "sources", len(res.Sources), "duration", time.Since(start).Truncate(time.Millisecond))

	if err := writeResult(stdout, res, *format); err != nil {
		fmt.Fprintf(stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

func defaultBoundsCache(dir string) string {
	return filepath.Join(dir, "data.csv")
}

// loadDebugHTML reads the page for debug modes from url (when set) or stdin.
func loadDebugHTML(ctx context.Context, rawURL string, stdin io.Reader, client *http.Client, timeout time.Duration, logger *slog.Logger) ([]byte, error) {
	if strings.TrimSpace(rawURL) == "" {
		if stdin == nil {
			return nil, fmt.Errorf("no -url and no stdin")
		}
		return io.ReadAll(stdin)
	}
	if client == nil {
		client = source.NewHTTPClient(0, false)
	}
	r := source.NewHTTPResolver(client, source.HTTPOptions{Timeout: timeout, Job: "debug", Logger: logger})
	doc, err := r.Resolve(ctx, source.Source{URL: rawURL})
	if err != nil {
		return nil, err
	}
	return doc.Body, nil
}
