// Package prompush implements a Prometheus Pushgateway backend for the
// internal/metrics package. Scrape runs are short-lived batch jobs, so
// metrics are collected in a private registry and pushed on Flush.
package prompush

import (
	"fmt"
	"strings"
	"sync"

	"statscrape/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

type spec struct {
	help   string
	labels []string
}

// Label sets per facade metric. The job label is carried by the push
// grouping key, not by the series.
var counterSpecs = map[string]spec{
	metrics.StepTotal:         {"Pipeline steps by outcome.", []string{"step", "status"}},
	metrics.RowsTotal:         {"Dataset rows by stage.", []string{"kind"}},
	metrics.CacheTotal:        {"Source cache lookups by result.", []string{"result"}},
	metrics.HTTPRequestsTotal: {"HTTP fetches by status.", []string{"status"}},
	metrics.HTTPErrorsTotal:   {"Failed HTTP fetches by status.", []string{"status"}},
}

var histogramSpecs = map[string]spec{
	metrics.StepDurationSeconds:  {"Pipeline step duration.", []string{"step", "status"}},
	metrics.HTTPRequestDuration:  {"HTTP request duration.", []string{"status"}},
	metrics.HTTPResponseDuration: {"HTTP body download duration.", []string{"status"}},
	metrics.HTTPDownloadBytes:    {"HTTP body size.", []string{"status"}},
}

// Backend implements metrics.Backend on top of a Pushgateway pusher.
type Backend struct {
	reg    *prometheus.Registry
	pusher *push.Pusher

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// NewBackend creates a backend that pushes to gatewayURL under job.
func NewBackend(job, gatewayURL string) (*Backend, error) {
	if strings.TrimSpace(gatewayURL) == "" {
		return nil, fmt.Errorf("prompush: empty gateway url")
	}
	if strings.TrimSpace(job) == "" {
		job = "statscrape"
	}

	reg := prometheus.NewRegistry()
	b := &Backend{
		reg:        reg,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}

	for name, s := range counterSpecs {
		v := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: s.help}, s.labels)
		if err := reg.Register(v); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
		b.counters[name] = v
	}
	for name, s := range histogramSpecs {
		buckets := prometheus.DefBuckets
		if name == metrics.HTTPDownloadBytes {
			buckets = prometheus.ExponentialBuckets(1024, 4, 8)
		}
		v := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: s.help, Buckets: buckets}, s.labels)
		if err := reg.Register(v); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
		b.histograms[name] = v
	}

	b.pusher = push.New(gatewayURL, job).Gatherer(reg)
	return b, nil
}

func values(s spec, labels metrics.Labels) []string {
	out := make([]string, len(s.labels))
	for i, k := range s.labels {
		v := labels[k]
		if v == "" {
			v = "unknown"
		}
		out[i] = v
	}
	return out
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	v, ok := b.counters[name]
	if !ok {
		return
	}
	v.WithLabelValues(values(counterSpecs[name], labels)...).Add(delta)
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	v, ok := b.histograms[name]
	if !ok {
		return
	}
	v.WithLabelValues(values(histogramSpecs[name], labels)...).Observe(value)
}

// Flush pushes the registry, replacing the job's previous group.
func (b *Backend) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}

// Gatherer exposes the registry, mainly for tests.
func (b *Backend) Gatherer() prometheus.Gatherer { return b.reg }

var _ metrics.Backend = (*Backend)(nil)
