package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"statscrape/internal/config"
	"statscrape/internal/source"
)

// resolvers bundles the cache-fronted resolver used for sources with the raw
// upstream used for bounds links, plus whatever needs closing.
type resolvers struct {
	Cached   source.Resolver
	Upstream source.Resolver
	closers  []func()
}

func (r *resolvers) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// buildResolvers wires the pipeline's fetch settings: an HTTP or headless
// browser upstream, fronted by a file or Redis document cache.
func buildResolvers(ctx context.Context, p *config.Pipeline, client *http.Client, logger *slog.Logger) (*resolvers, error) {
	f := p.Fetch
	delay, err := f.DelayDuration()
	if err != nil {
		return nil, fmt.Errorf("fetch.delay: %w", err)
	}
	timeout, err := f.TimeoutDuration()
	if err != nil {
		return nil, fmt.Errorf("fetch.timeout: %w", err)
	}

	out := &resolvers{}
	switch f.Kind {
	case config.FetchBrowser:
		b := source.NewBrowserResolver(source.BrowserOptions{
			UserAgent: f.UserAgent,
			Timeout:   timeout,
			Delay:     delay,
			WaitFor:   f.WaitFor,
			Logger:    logger,
		})
		out.closers = append(out.closers, b.Close)
		out.Upstream = b
	default:
		if client == nil {
			client = source.NewHTTPClient(timeout, f.CloudflareBypass)
		}
		out.Upstream = source.NewHTTPResolver(client, source.HTTPOptions{
			UserAgent: f.UserAgent,
			Timeout:   timeout,
			Delay:     delay,
			Job:       p.Job,
			Logger:    logger,
		})
	}

	var store source.Store
	switch f.Cache {
	case config.CacheNone:
	case config.CacheRedis:
		rs, err := source.NewRedisStore(ctx, f.RedisURL, f.RedisPrefix, 0)
		if err != nil {
			out.Close()
			return nil, err
		}
		out.closers = append(out.closers, func() { _ = rs.Close() })
		store = rs
	default:
		store = source.NewFileStore(f.CacheDir)
	}

	out.Cached = out.Upstream
	if store != nil {
		out.Cached = &source.CachedResolver{
			Store:    store,
			Upstream: out.Upstream,
			Suffix:   f.CacheSuffix,
			Job:      p.Job,
			Logger:   logger,
		}
	}
	logger.Debug("fetch configured", "kind", f.Kind, "cache", f.Cache, "cache_dir", f.CacheDir, "delay", delay, "timeout", timeout)
	return out, nil
}
