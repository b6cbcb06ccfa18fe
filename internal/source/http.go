package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"statscrape/internal/metrics"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
)

// NewHTTPClient returns a client with the given overall timeout (0 = none).
// With cloudflareBypass the transport mimics a browser TLS fingerprint, which
// FBref's CDN otherwise answers with a 403 challenge page.
func NewHTTPClient(timeout time.Duration, cloudflareBypass bool) *http.Client {
	var rt http.RoundTripper = http.DefaultTransport.(*http.Transport).Clone()
	if cloudflareBypass {
		rt = cloudflarebp.AddCloudFlareByPass(rt)
	}
	return &http.Client{Transport: rt, Timeout: timeout}
}

// HTTPOptions configure an HTTPResolver.
type HTTPOptions struct {
	UserAgent string        // defaults to DefaultUserAgent
	Timeout   time.Duration // per request; 0 means no timeout
	Delay     time.Duration // sleep before every fetch after the first
	Job       string        // metrics job label
	Logger    *slog.Logger
}

// HTTPResolver fetches documents with a plain GET.
type HTTPResolver struct {
	client  *http.Client
	ua      string
	timeout time.Duration
	job     string
	log     *slog.Logger
	pace    *pacer
}

// NewHTTPResolver creates a resolver. If client is nil, http.DefaultClient is used.
func NewHTTPResolver(client *http.Client, opts HTTPOptions) *HTTPResolver {
	if client == nil {
		client = http.DefaultClient
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &HTTPResolver{
		client:  client,
		ua:      ua,
		timeout: opts.Timeout,
		job:     opts.Job,
		log:     log,
		pace:    newPacer(opts.Delay),
	}
}

// Resolve implements Resolver.
//
// On non-2xx responses the error includes the status code and up to 4KB of
// the response body.
func (r *HTTPResolver) Resolve(ctx context.Context, src Source) (*Document, error) {
	if strings.TrimSpace(src.URL) == "" {
		return nil, fmt.Errorf("%w: empty url", ErrFetch)
	}
	if err := r.pace.wait(ctx); err != nil {
		return nil, err
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: new request: %w", ErrFetch, err)
	}
	req.Header.Set("User-Agent", r.ua)

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		metrics.RecordHTTP(r.job, 0, err, time.Since(start), 0, 0)
		return nil, fmt.Errorf("%w: get %s: %w", ErrFetch, src.URL, err)
	}
	defer resp.Body.Close()

	bodyStart := time.Now()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		metrics.RecordHTTP(r.job, resp.StatusCode, nil, time.Since(start), time.Since(bodyStart), len(snippet))
		return nil, fmt.Errorf("%w: get %s: http status %d: %s", ErrFetch, src.URL, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	body, err := io.ReadAll(resp.Body)
	metrics.RecordHTTP(r.job, resp.StatusCode, err, time.Since(start), time.Since(bodyStart), len(body))
	if err != nil {
		return nil, fmt.Errorf("%w: read body %s: %w", ErrFetch, src.URL, err)
	}

	r.log.Debug("fetched", "url", src.URL, "status", resp.StatusCode, "bytes", len(body), "elapsed", time.Since(start))
	return &Document{Source: src, Body: body}, nil
}

var _ Resolver = (*HTTPResolver)(nil)
