package pipeline

import (
	"context"
	"fmt"

	"statscrape/internal/config"
	"statscrape/internal/dataset"
	"statscrape/internal/extracthtml"
	"statscrape/internal/source"

	"github.com/PuerkitoBio/goquery"
)

// collectBounds returns per-parameter ranges. A readable cache file wins;
// otherwise each link in the bounds source's dataset is one parameter, and
// the min and max of the values on the linked page become its range.
func (r *Runner) collectBounds(ctx context.Context, p *config.Pipeline, results []SourceResult) (dataset.Bounds, error) {
	cfg := p.Bounds
	log := r.logger().With("job", p.Job)

	if cfg.Cache != "" {
		b, ok, err := dataset.LoadBoundsFile(cfg.Cache)
		if err != nil {
			return dataset.Bounds{}, err
		}
		if ok {
			log.Debug("bounds cache hit", "path", cfg.Cache, "params", b.Len())
			return b, nil
		}
	}

	if cfg.Source < 0 || cfg.Source >= len(results) {
		return dataset.Bounds{}, fmt.Errorf("source index %d out of range", cfg.Source)
	}
	src := results[cfg.Source]
	if src.Dataset == nil {
		return dataset.Bounds{}, fmt.Errorf("source %d has no dataset to follow", cfg.Source)
	}

	base := cfg.BaseURL
	if base == "" {
		base = src.Source.URL
	}
	links, err := extracthtml.ResolveLinks(src.Dataset, cfg.LinkField, base)
	if err != nil {
		return dataset.Bounds{}, err
	}

	sel, err := extracthtml.CompileLocator(cfg.Values)
	if err != nil {
		return dataset.Bounds{}, fmt.Errorf("values: %w", err)
	}
	var csel string
	if !cfg.Container.IsZero() {
		if csel, err = extracthtml.CompileLocator(cfg.Container); err != nil {
			return dataset.Bounds{}, fmt.Errorf("container: %w", err)
		}
	}

	resolver := r.LinkResolver
	if resolver == nil {
		resolver = r.Resolver
	}

	rule := extracthtml.FieldRule{Name: "value", Type: extracthtml.TypeFloat, Strip: cfg.Strip}
	now := r.now()

	var b dataset.Bounds
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return dataset.Bounds{}, err
		}
		doc, err := resolver.Resolve(ctx, source.Source{URL: link})
		if err != nil {
			return dataset.Bounds{}, err
		}
		tree, err := extracthtml.Parse(doc.Body)
		if err != nil {
			return dataset.Bounds{}, err
		}

		root := tree.Selection
		if csel != "" {
			root = within(root, cfg.Container.Direct, csel).First()
			if root.Length() == 0 {
				return dataset.Bounds{}, &extracthtml.NotFoundError{What: "bounds container at " + link, Selector: csel}
			}
		}
		cells := within(root, cfg.Values.Direct, sel)
		if cells.Length() == 0 {
			return dataset.Bounds{}, &extracthtml.NotFoundError{What: "bounds values at " + link, Selector: sel}
		}

		var lo, hi float64
		for i := 0; i < cells.Length(); i++ {
			text := cells.Eq(i).Text()
			v, err := extracthtml.Convert(text, rule, now)
			if err != nil {
				return dataset.Bounds{}, &extracthtml.ConversionError{Field: link, Row: i, Text: text, Type: extracthtml.TypeFloat, Err: err}
			}
			f := v.(float64)
			if i == 0 || f < lo {
				lo = f
			}
			if i == 0 || f > hi {
				hi = f
			}
		}
		b.Min = append(b.Min, lo)
		b.Max = append(b.Max, hi)
		log.Debug("bounds parameter", "url", link, "min", lo, "max", hi, "values", cells.Length())
	}

	if err := b.Validate(); err != nil {
		return dataset.Bounds{}, err
	}
	if cfg.Cache != "" {
		if err := dataset.SaveBoundsFile(cfg.Cache, b); err != nil {
			return dataset.Bounds{}, fmt.Errorf("write bounds cache: %w", err)
		}
		log.Info("bounds cached", "path", cfg.Cache, "params", b.Len())
	}
	return b, nil
}

func within(root *goquery.Selection, direct bool, sel string) *goquery.Selection {
	if direct {
		return root.ChildrenFiltered(sel)
	}
	return root.Find(sel)
}
