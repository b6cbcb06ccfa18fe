// Command passes builds the StatsBomb pass dataset between two players over a
// run of La Liga seasons and prints it with its completion summary.
//
// The dataset is cached as CSV; once the cache exists no request is made.
//
// Usage:
//
//	passes -cache assets/passes.csv
//	passes -seasons 90,42 -format table
//	passes -passer "Sergio Busquets i Burgos" -recipient "Lionel Andrés Messi Cuccittini"
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"statscrape/internal/dataset"
	"statscrape/internal/source"
	"statscrape/internal/statsbomb"
)

const defaultSeasons = "90,42,4,1,2,27,26,25,24,23,22,21,41"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, nil)
	stop()
	os.Exit(code)
}

// output is the JSON shape of a run.
type output struct {
	Cached  bool              `json:"cached"`
	Summary statsbomb.Summary `json:"summary"`
	Passes  *dataset.Dataset  `json:"passes"`
}

// run returns 0 on success, 2 for usage errors and 1 for runtime errors.
// httpClient may be nil.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, httpClient *http.Client) int {
	fs := flag.NewFlagSet("passes", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cachePath := fs.String("cache", "passes.csv", "pass dataset CSV cache")
	competition := fs.Int("competition", 11, "StatsBomb competition id (11 = La Liga)")
	seasons := fs.String("seasons", defaultSeasons, "comma-separated StatsBomb season ids")
	passer := fs.String("passer", "Sergio Busquets i Burgos", "passer full name")
	recipient := fs.String("recipient", "Lionel Andrés Messi Cuccittini", "recipient full name")
	format := fs.String("format", "json", "output format: json, csv or table")
	baseURL := fs.String("base-url", statsbomb.DefaultBaseURL, "open-data base URL")
	timeout := fs.Duration("timeout", 60*time.Second, "per-request timeout")
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
	case "json", "csv", "table":
	default:
		fmt.Fprintf(stderr, "unknown -format %q (want json, csv or table)\n", *format)
		return 2
	}

	ids, err := parseSeasons(*seasons)
	if err != nil {
		fmt.Fprintf(stderr, "-seasons: %v\n", err)
		return 2
	}
	q := statsbomb.PassQuery{
		Competition: *competition,
		Seasons:     ids,
		Passer:      *passer,
		Recipient:   *recipient,
	}
	if err := q.Validate(); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}

	if httpClient == nil {
		httpClient = source.NewHTTPClient(*timeout, false)
	}
	client := &statsbomb.Client{
		Resolver: source.NewHTTPResolver(httpClient, source.HTTPOptions{Timeout: *timeout, Job: "passes", Logger: logger}),
		BaseURL:  *baseURL,
		Job:      "passes",
		Logger:   logger,
	}

	ds, cached, err := client.LoadOrFetch(ctx, *cachePath, q)
	if err != nil {
		fmt.Fprintf(stderr, "passes: %v\n", err)
		return 1
	}
	sum, err := statsbomb.Summarize(ds)
	if err != nil {
		fmt.Fprintf(stderr, "passes: %v\n", err)
		return 1
	}
	logger.Info("passes", "attempted", sum.Attempted, "incomplete", sum.Incomplete, "cached", cached)

	switch *format {
	case "csv":
		err = ds.WriteCSV(stdout)
	case "table":
		ds.RenderTable(stdout, fmt.Sprintf("%s -> %s", *passer, *recipient))
		_, err = fmt.Fprintf(stdout, "attempted=%d incomplete=%d success_rate=%.1f%%\n", sum.Attempted, sum.Incomplete, sum.SuccessRate)
	default:
		enc := json.NewEncoder(stdout)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		err = enc.Encode(output{Cached: cached, Summary: sum, Passes: ds})
	}
	if err != nil {
		fmt.Fprintf(stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

func parseSeasons(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid season id %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}
