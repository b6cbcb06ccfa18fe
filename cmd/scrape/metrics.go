package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"statscrape/internal/metrics"
	"statscrape/internal/metrics/datadog"
	"statscrape/internal/metrics/prompush"
)

// setupMetrics installs the requested backend and returns the shutdown
// function that flushes it. Backend selection: flag, then METRICS_BACKEND.
// A backend that fails to initialize leaves the nop backend in place.
func setupMetrics(ctx context.Context, backendName, gwURL, job string, logger *slog.Logger) func() {
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	if job == "" {
		job = "statscrape"
	}

	switch backendName {
	case "pushgateway":
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(job, gwURL)
		if err != nil {
			logger.Warn("metrics: pushgateway init failed; using nop", "err", err)
			return func() {}
		}
		logger.Debug("metrics: pushgateway", "url", gwURL, "job", job)
		metrics.SetBackend(b)
		return func() {
			if err := metrics.Flush(); err != nil {
				logger.Warn("metrics: flush error", "err", err)
			}
			metrics.SetBackend(nil)
		}

	case "datadog":
		// Buffers and submits periodically, plus once more on Close.
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    job,
			Tags:       datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")),
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			logger.Warn("metrics: datadog init failed; using nop", "err", err)
			return func() {}
		}
		logger.Debug("metrics: datadog", "job", job)
		metrics.SetBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				logger.Warn("metrics: datadog close/flush error", "err", err)
			}
			metrics.SetBackend(nil)
		}

	case "", "none":
		return func() {}

	default:
		logger.Warn("metrics: unknown backend; metrics disabled", "backend", backendName)
		return func() {}
	}
}
