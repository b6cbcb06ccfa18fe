package source

import (
	"context"
	"fmt"
	"log/slog"

	"statscrape/internal/metrics"
)

// CachedResolver serves documents from Store and only falls back to Upstream
// on a miss, persisting what it fetched.
type CachedResolver struct {
	Store    Store
	Upstream Resolver
	Suffix   string // appended to derived keys, e.g. ".html"
	Job      string
	Logger   *slog.Logger
}

func (c *CachedResolver) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Key returns the cache key used for src.
func (c *CachedResolver) Key(src Source) string {
	if src.CacheKey != "" {
		return src.CacheKey
	}
	return CacheKey(src.URL, c.Suffix)
}

// Resolve implements Resolver.
func (c *CachedResolver) Resolve(ctx context.Context, src Source) (*Document, error) {
	key := c.Key(src)
	if key == "" {
		return nil, fmt.Errorf("cannot derive cache key from %q", src.URL)
	}

	body, ok, err := c.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	metrics.RecordCache(c.Job, ok)
	if ok {
		c.logger().Debug("cache hit", "key", key, "bytes", len(body))
		return &Document{Source: src, Body: body, Cached: true}, nil
	}

	if c.Upstream == nil {
		return nil, fmt.Errorf("%w: %s not cached and no upstream configured", ErrFetch, key)
	}
	doc, err := c.Upstream.Resolve(ctx, src)
	if err != nil {
		return nil, err
	}
	if err := c.Store.Put(ctx, key, doc.Body); err != nil {
		return nil, err
	}
	c.logger().Info("cached", "key", key, "url", src.URL, "bytes", len(doc.Body))
	return doc, nil
}

var _ Resolver = (*CachedResolver)(nil)
