package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"statscrape/internal/dataset"
	"statscrape/internal/extracthtml"
)

// Severity of a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path points into the pipeline file.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

var storageKinds = map[string]bool{"sqlite": true, "postgres": true, "mssql": true}

// ValidatePipeline checks p without touching the network or any database.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue
	errf := func(path, format string, args ...any) {
		issues = append(issues, Issue{SeverityError, path, fmt.Sprintf(format, args...)})
	}
	warnf := func(path, format string, args ...any) {
		issues = append(issues, Issue{SeverityWarning, path, fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(p.Job) == "" {
		warnf("job", "empty job name; metrics and logs will be unlabeled")
	}

	if len(p.Sources) == 0 {
		errf("sources", "at least one source is required")
	}
	for i, s := range p.Sources {
		path := fmt.Sprintf("sources[%d]", i)
		if strings.TrimSpace(s.URL) == "" && s.CacheKey == "" {
			errf(path, "url or cache_key is required")
			continue
		}
		if s.URL != "" {
			u, err := url.Parse(s.URL)
			if err != nil || u.Scheme == "" || u.Host == "" {
				errf(path+".url", "not an absolute url: %q", s.URL)
			}
		}
	}

	validateFetch(p.Fetch, errf)

	var fields []dataset.Field
	switch {
	case p.Schema != nil:
		if err := extracthtml.ValidateSchema(*p.Schema); err != nil {
			errf("schema", "%v", err)
		} else {
			fields = extracthtml.DatasetFields(p.Schema.Fields)
		}
	case len(p.Record) == 0:
		errf("schema", "schema or record rules are required")
	}
	if len(p.Record) > 0 {
		if err := extracthtml.ValidateRules(p.Record); err != nil {
			errf("record", "%v", err)
		}
	}

	if fields != nil {
		for i, f := range p.Filters {
			if err := f.Validate(fields); err != nil {
				errf(fmt.Sprintf("filters[%d]", i), "%v", err)
			}
		}
		for i, name := range p.Stats {
			if k := kindOf(fields, name); k == "" {
				errf(fmt.Sprintf("stats[%d]", i), "unknown field %q", name)
			} else if k == dataset.KindString {
				errf(fmt.Sprintf("stats[%d]", i), "field %q is not numeric", name)
			}
		}
	} else if len(p.Filters) > 0 || len(p.Stats) > 0 {
		errf("filters", "filters and stats need a valid schema")
	}

	if b := p.Bounds; b != nil {
		if b.Source < 0 || b.Source >= len(p.Sources) {
			errf("bounds.source", "index %d out of range", b.Source)
		}
		if fields != nil && kindOf(fields, b.LinkField) != dataset.KindString {
			errf("bounds.link_field", "%q must be a string field of the schema", b.LinkField)
		}
		if !b.Container.IsZero() {
			if _, err := extracthtml.CompileLocator(b.Container); err != nil {
				errf("bounds.container", "%v", err)
			}
		}
		if b.Values.IsZero() {
			errf("bounds.values", "value locator is required")
		} else if _, err := extracthtml.CompileLocator(b.Values); err != nil {
			errf("bounds.values", "%v", err)
		}
		if b.Cache == "" {
			warnf("bounds.cache", "no cache file; every run refetches all linked pages")
		}
	}

	if s := p.Storage; s != nil {
		if !storageKinds[s.Kind] {
			errf("storage.kind", "unknown storage kind %q", s.Kind)
		}
		if strings.TrimSpace(s.DSN) == "" {
			errf("storage.dsn", "dsn is required")
		}
		if strings.TrimSpace(s.Table) == "" {
			errf("storage.table", "table is required")
		}
		for i, d := range s.Dedupe {
			if fields != nil && kindOf(fields, d) == "" {
				errf(fmt.Sprintf("storage.dedupe[%d]", i), "unknown field %q", d)
			}
		}
	}

	for name, c := range map[string]string{"theme.background": p.Theme.Background, "theme.primary": p.Theme.Primary} {
		if c != "" && !hexColor.MatchString(c) {
			warnf(name, "%q is not a #rrggbb color", c)
		}
	}
	for i, c := range p.Theme.Accents {
		if !hexColor.MatchString(c) {
			warnf(fmt.Sprintf("theme.accents[%d]", i), "%q is not a #rrggbb color", c)
		}
	}

	return issues
}

func validateFetch(f Fetch, errf func(path, format string, args ...any)) {
	switch f.Kind {
	case "", FetchHTTP, FetchBrowser:
	default:
		errf("fetch.kind", "unknown fetch kind %q", f.Kind)
	}
	switch f.Cache {
	case "", CacheFile, CacheNone:
	case CacheRedis:
		if strings.TrimSpace(f.RedisURL) == "" {
			errf("fetch.redis_url", "redis cache requires redis_url")
		}
	default:
		errf("fetch.cache", "unknown cache kind %q", f.Cache)
	}
	if _, err := f.DelayDuration(); err != nil {
		errf("fetch.delay", "%v", err)
	}
	if _, err := f.TimeoutDuration(); err != nil {
		errf("fetch.timeout", "%v", err)
	}
}

func kindOf(fields []dataset.Field, name string) dataset.Kind {
	for _, f := range fields {
		if f.Name == name {
			return f.Kind
		}
	}
	return ""
}
