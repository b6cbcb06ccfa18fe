// Package source resolves source documents: raw page bytes fetched over the
// network or read back from a cache.
//
// Resolvers compose: a CachedResolver wraps a network resolver (HTTP or a
// headless browser) and a Store, so a present cache entry short-circuits the
// network entirely.
package source

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrFetch wraps every transport or non-2xx failure.
var ErrFetch = errors.New("fetch failed")

// DefaultUserAgent is the fixed desktop-browser identification sent with
// every request. Several stats sites reject the Go default.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/47.0.2526.106 Safari/537.36"

// Source identifies one document. CacheKey overrides the key derived from URL.
type Source struct {
	URL      string `json:"url" yaml:"url"`
	CacheKey string `json:"cache_key,omitempty" yaml:"cache_key,omitempty"`
}

// Document is a resolved source. Body is never mutated after resolution.
type Document struct {
	Source Source
	Body   []byte
	Cached bool
}

// Resolver turns a Source into a Document.
type Resolver interface {
	Resolve(ctx context.Context, src Source) (*Document, error)
}

// CacheKey derives a file-safe key from the last non-empty path segment of
// rawURL, falling back to the host, and appends suffix when missing.
//
//	CacheKey("https://fbref.com/en/squads/206d90db/Barcelona-Stats", ".html")
//	=> "Barcelona-Stats.html"
func CacheKey(rawURL, suffix string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}

	key := ""
	segs := strings.Split(u.Path, "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(segs[i]); s != "" {
			key = s
			break
		}
	}
	if key == "" {
		key = u.Hostname()
	}
	if key == "" {
		return ""
	}
	if suffix != "" && !strings.HasSuffix(key, suffix) {
		key += suffix
	}
	return key
}

// pacer applies a fixed delay before every fetch after the first one.
type pacer struct {
	delay time.Duration
	sleep func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	fetches int
}

func newPacer(delay time.Duration) *pacer {
	return &pacer{delay: delay, sleep: sleepCtx}
}

func (p *pacer) wait(ctx context.Context) error {
	p.mu.Lock()
	n := p.fetches
	p.fetches++
	p.mu.Unlock()

	if n == 0 || p.delay <= 0 {
		return nil
	}
	return p.sleep(ctx, p.delay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
