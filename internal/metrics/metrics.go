// Package metrics is the process-wide metrics facade used by the scrape
// pipelines. Core code records through the helpers below; a concrete backend
// (Datadog, Prometheus Pushgateway) is installed once by the command.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Metric names. Backends translate them to their own naming conventions.
const (
	StepTotal            = "statscrape_step_total"
	StepDurationSeconds  = "statscrape_step_duration_seconds"
	RowsTotal            = "statscrape_rows_total"
	CacheTotal           = "statscrape_cache_total"
	HTTPRequestsTotal    = "statscrape_http_requests_total"
	HTTPErrorsTotal      = "statscrape_http_errors_total"
	HTTPRequestDuration  = "statscrape_http_request_duration_seconds"
	HTTPResponseDuration = "statscrape_http_response_duration_seconds"
	HTTPDownloadBytes    = "statscrape_http_download_bytes"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric events. Implementations must be safe for
// concurrent use and should ignore metric names they do not know.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. nil restores the no-op.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush asks the installed backend to submit buffered data.
func Flush() error { return current().Flush() }

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordStep records one pipeline step outcome and its duration.
func RecordStep(job, step string, err error, dur time.Duration) {
	l := Labels{"job": job, "step": step, "status": statusOf(err)}
	b := current()
	b.IncCounter(StepTotal, 1, l)
	b.ObserveHistogram(StepDurationSeconds, dur.Seconds(), l)
}

// RecordRows counts rows by kind ("extracted", "kept", "stored").
func RecordRows(job, kind string, n int) {
	if n <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(n), Labels{"job": job, "kind": kind})
}

// RecordCache counts cache lookups by result.
func RecordCache(job string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	current().IncCounter(CacheTotal, 1, Labels{"job": job, "result": result})
}

// RecordHTTP records one HTTP fetch.
//
// status is the response code, 0 when no response was received. reqDur covers
// the whole request, respDur the body download, bytes the body size.
func RecordHTTP(job string, status int, err error, reqDur, respDur time.Duration, bytes int) {
	st := "none"
	if status > 0 {
		st = strconv.Itoa(status)
	}
	l := Labels{"job": job, "status": st}
	b := current()
	b.IncCounter(HTTPRequestsTotal, 1, l)
	if err != nil || status < 200 || status >= 300 {
		b.IncCounter(HTTPErrorsTotal, 1, l)
	}
	b.ObserveHistogram(HTTPRequestDuration, reqDur.Seconds(), l)
	if status > 0 {
		b.ObserveHistogram(HTTPResponseDuration, respDur.Seconds(), l)
		b.ObserveHistogram(HTTPDownloadBytes, float64(bytes), l)
	}
}
