package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserOptions configure a BrowserResolver.
type BrowserOptions struct {
	UserAgent string
	Timeout   time.Duration // per page; defaults to 30s
	Delay     time.Duration // sleep before every fetch after the first
	Settle    time.Duration // extra wait after the body is visible, for late JS
	WaitFor   string        // CSS selector to wait for; defaults to "body"
	Logger    *slog.Logger
}

// BrowserResolver renders pages in headless Chrome and returns the final
// outer HTML. Use it for pages whose tables are filled in by JavaScript.
type BrowserResolver struct {
	allocCtx context.Context
	cancel   context.CancelFunc

	timeout time.Duration
	settle  time.Duration
	waitFor string
	log     *slog.Logger
	pace    *pacer
}

// NewBrowserResolver starts a Chrome allocator. Close releases it.
func NewBrowserResolver(opts BrowserOptions) *BrowserResolver {
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(ua),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	waitFor := opts.WaitFor
	if waitFor == "" {
		waitFor = "body"
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &BrowserResolver{
		allocCtx: allocCtx,
		cancel:   cancel,
		timeout:  timeout,
		settle:   opts.Settle,
		waitFor:  waitFor,
		log:      log,
		pace:     newPacer(opts.Delay),
	}
}

// Close shuts the browser down.
func (b *BrowserResolver) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}

// Resolve implements Resolver.
func (b *BrowserResolver) Resolve(ctx context.Context, src Source) (*Document, error) {
	if strings.TrimSpace(src.URL) == "" {
		return nil, fmt.Errorf("%w: empty url", ErrFetch)
	}
	if err := b.pace.wait(ctx); err != nil {
		return nil, err
	}

	browserCtx, cancel := chromedp.NewContext(b.allocCtx)
	defer cancel()
	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, b.timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	actions := []chromedp.Action{
		chromedp.Navigate(src.URL),
		chromedp.WaitVisible(b.waitFor, chromedp.ByQuery),
	}
	if b.settle > 0 {
		actions = append(actions, chromedp.Sleep(b.settle))
	}
	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	start := time.Now()
	if err := chromedp.Run(browserCtx, actions...); err != nil {
		return nil, fmt.Errorf("%w: render %s: %w", ErrFetch, src.URL, err)
	}
	if html == "" {
		return nil, fmt.Errorf("%w: render %s: empty document", ErrFetch, src.URL)
	}

	b.log.Debug("rendered", "url", src.URL, "bytes", len(html), "elapsed", time.Since(start))
	return &Document{Source: src, Body: []byte(html)}, nil
}

var _ Resolver = (*BrowserResolver)(nil)
