// Package pipeline runs a configured scrape job end to end: resolve each
// source, extract its record and dataset, filter, summarize, optionally
// persist, then collect radar bounds.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"statscrape/internal/config"
	"statscrape/internal/dataset"
	"statscrape/internal/extracthtml"
	"statscrape/internal/metrics"
	"statscrape/internal/source"
	"statscrape/internal/storage"
)

// Runner executes pipelines. Resolver is required; the rest have defaults.
type Runner struct {
	Resolver source.Resolver

	// LinkResolver fetches pages followed for bounds. Defaults to Resolver.
	// Linked pages often share a path tail, so callers usually pass an
	// uncached resolver here and rely on the bounds CSV instead.
	LinkResolver source.Resolver

	// storage-agnostic factory seam
	NewRepository func(ctx context.Context, cfg storage.Config) (storage.Repository, error)

	Now    func() time.Time
	Logger *slog.Logger
}

// NewDefaultRunner wires storage.New as the repository factory.
func NewDefaultRunner(resolver source.Resolver, logger *slog.Logger) *Runner {
	return &Runner{
		Resolver:      resolver,
		NewRepository: storage.New,
		Logger:        logger,
	}
}

// SourceResult is everything extracted from one source.
type SourceResult struct {
	Source  source.Source              `json:"source"`
	Cached  bool                       `json:"cached"`
	Record  *dataset.Dataset           `json:"record,omitempty"`
	Dataset *dataset.Dataset           `json:"dataset,omitempty"`
	Stats   map[string]dataset.Summary `json:"stats,omitempty"`
	Stored  int64                      `json:"stored,omitempty"`
}

// Result is the output of one run, ready to hand to a renderer.
type Result struct {
	Job     string          `json:"job"`
	Theme   config.Theme    `json:"theme"`
	Sources []SourceResult  `json:"sources"`
	Bounds  *dataset.Bounds `json:"bounds,omitempty"`
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// step times fn and records it under name.
func (r *Runner) step(job, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	dur := time.Since(start)
	metrics.RecordStep(job, name, err, dur)
	if err != nil {
		r.logger().Error("step failed", "job", job, "step", name, "duration", dur, "err", err)
	} else {
		r.logger().Debug("step done", "job", job, "step", name, "duration", dur)
	}
	return err
}

// Run executes p. Sources are processed sequentially in order and any
// failure aborts the run.
func (r *Runner) Run(ctx context.Context, p *config.Pipeline) (*Result, error) {
	if r.Resolver == nil {
		return nil, fmt.Errorf("pipeline: no resolver configured")
	}
	if p.Schema == nil && len(p.Record) == 0 {
		return nil, fmt.Errorf("pipeline %q: schema or record rules are required", p.Job)
	}

	job := p.Job
	res := &Result{Job: job, Theme: p.Theme}
	opts := extracthtml.Options{Now: r.Now}
	log := r.logger().With("job", job)

	var repo storage.Repository
	if p.Storage != nil {
		if r.NewRepository == nil {
			return nil, fmt.Errorf("pipeline %q: storage configured but no repository factory", job)
		}
		err := r.step(job, "storage_open", func() error {
			var err error
			repo, err = r.NewRepository(ctx, storage.Config{Kind: p.Storage.Kind, DSN: os.ExpandEnv(p.Storage.DSN)})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		defer repo.Close()
	}

	for i, src := range p.Sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sr, err := r.runSource(ctx, p, src, opts, repo)
		if err != nil {
			return nil, fmt.Errorf("source %d (%s): %w", i, src.URL, err)
		}
		log.Info("source done", "url", src.URL, "cached", sr.Cached, "rows", rowCount(sr.Dataset))
		res.Sources = append(res.Sources, sr)
	}

	if p.Bounds != nil {
		var b dataset.Bounds
		err := r.step(job, "bounds", func() error {
			var err error
			b, err = r.collectBounds(ctx, p, res.Sources)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("bounds: %w", err)
		}
		res.Bounds = &b
	}

	return res, nil
}

func (r *Runner) runSource(ctx context.Context, p *config.Pipeline, src source.Source, opts extracthtml.Options, repo storage.Repository) (SourceResult, error) {
	job := p.Job
	sr := SourceResult{Source: src}

	var doc *source.Document
	if err := r.step(job, "resolve", func() error {
		var err error
		doc, err = r.Resolver.Resolve(ctx, src)
		return err
	}); err != nil {
		return sr, err
	}
	sr.Cached = doc.Cached

	tree, err := extracthtml.Parse(doc.Body)
	if err != nil {
		return sr, err
	}

	if len(p.Record) > 0 {
		if err := r.step(job, "record", func() error {
			var err error
			sr.Record, err = extracthtml.ExtractRecord(ctx, tree, p.Record, opts)
			return err
		}); err != nil {
			return sr, err
		}
	}

	if p.Schema == nil {
		return sr, nil
	}

	if err := r.step(job, "extract", func() error {
		var err error
		sr.Dataset, err = extracthtml.ExtractDataset(ctx, tree, *p.Schema, opts)
		return err
	}); err != nil {
		return sr, err
	}
	metrics.RecordRows(job, "extracted", sr.Dataset.Len())

	if len(p.Filters) > 0 {
		if err := r.step(job, "filter", func() error {
			var err error
			sr.Dataset, err = dataset.ApplyFilters(sr.Dataset, p.Filters)
			return err
		}); err != nil {
			return sr, err
		}
	}
	metrics.RecordRows(job, "kept", sr.Dataset.Len())

	if len(p.Stats) > 0 {
		sr.Stats = make(map[string]dataset.Summary, len(p.Stats))
		for _, name := range p.Stats {
			s, err := sr.Dataset.Summarize(name)
			if errors.Is(err, dataset.ErrEmpty) {
				r.logger().Warn("no rows to summarize", "job", job, "field", name, "url", src.URL)
				continue
			}
			if err != nil {
				return sr, err
			}
			sr.Stats[name] = s
		}
	}

	if repo != nil {
		if err := r.step(job, "store", func() error {
			var err error
			sr.Stored, err = storage.Save(ctx, repo, p.Storage.Table, sr.Dataset, p.Storage.Dedupe)
			return err
		}); err != nil {
			return sr, err
		}
		metrics.RecordRows(job, "stored", int(sr.Stored))
	}

	return sr, nil
}

func rowCount(ds *dataset.Dataset) int {
	if ds == nil {
		return 0
	}
	return ds.Len()
}
