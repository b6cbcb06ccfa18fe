// Package config defines scrape pipeline files and their validation.
//
// A pipeline file replaces the per-script constants of a one-off scraper:
// which pages to read, how to fetch them, the extraction schema, caller-side
// filters, which statistics to compute and the chart theme handed to the
// renderer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"statscrape/internal/dataset"
	"statscrape/internal/extracthtml"
	"statscrape/internal/source"

	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"
)

// Fetch kinds.
const (
	FetchHTTP    = "http"
	FetchBrowser = "browser"
)

// Cache kinds.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Pipeline is one scrape job.
type Pipeline struct {
	Job         string                  `json:"job" yaml:"job"`
	Description string                  `json:"description,omitempty" yaml:"description,omitempty"`
	Sources     []source.Source         `json:"sources" yaml:"sources"`
	Fetch       Fetch                   `json:"fetch" yaml:"fetch"`
	Schema      *extracthtml.Schema     `json:"schema,omitempty" yaml:"schema,omitempty"`
	SchemaFile  string                  `json:"schema_file,omitempty" yaml:"schema_file,omitempty"`
	Record      []extracthtml.FieldRule `json:"record,omitempty" yaml:"record,omitempty"`
	Filters     []dataset.FilterSpec    `json:"filters,omitempty" yaml:"filters,omitempty"`
	Stats       []string                `json:"stats,omitempty" yaml:"stats,omitempty"`
	Bounds      *Bounds                 `json:"bounds,omitempty" yaml:"bounds,omitempty"`
	Storage     *Storage                `json:"storage,omitempty" yaml:"storage,omitempty"`
	Theme       Theme                   `json:"theme" yaml:"theme"`
}

// Fetch controls how source documents are resolved.
type Fetch struct {
	Kind             string `json:"kind,omitempty" yaml:"kind,omitempty"` // http | browser
	UserAgent        string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	Delay            string `json:"delay,omitempty" yaml:"delay,omitempty"`     // Go duration, applied between fetches
	Timeout          string `json:"timeout,omitempty" yaml:"timeout,omitempty"` // Go duration; empty or "0" = none
	Cache            string `json:"cache,omitempty" yaml:"cache,omitempty"`     // file | redis | none
	CacheDir         string `json:"cache_dir,omitempty" yaml:"cache_dir,omitempty"`
	CacheSuffix      string `json:"cache_suffix,omitempty" yaml:"cache_suffix,omitempty"`
	RedisURL         string `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`
	RedisPrefix      string `json:"redis_prefix,omitempty" yaml:"redis_prefix,omitempty"`
	CloudflareBypass bool   `json:"cloudflare_bypass,omitempty" yaml:"cloudflare_bypass,omitempty"`
	WaitFor          string `json:"wait_for,omitempty" yaml:"wait_for,omitempty"` // browser only
}

// DelayDuration parses Delay.
func (f Fetch) DelayDuration() (time.Duration, error) { return parseDuration(f.Delay) }

// TimeoutDuration parses Timeout.
func (f Fetch) TimeoutDuration() (time.Duration, error) { return parseDuration(f.Timeout) }

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

// Bounds describes how per-parameter radar ranges are collected: follow the
// link column of one source's dataset, read a value column from each linked
// page and keep its min and max. Cache short-circuits all of that.
//
// Values are searched inside the first Container match of each linked page;
// a zero Container means the whole page.
type Bounds struct {
	Source    int                 `json:"source,omitempty" yaml:"source,omitempty"` // index into Sources
	LinkField string              `json:"link_field" yaml:"link_field"`
	BaseURL   string              `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Container extracthtml.Locator `json:"container,omitempty" yaml:"container,omitempty"`
	Values    extracthtml.Locator `json:"values" yaml:"values"`
	Strip     []string            `json:"strip,omitempty" yaml:"strip,omitempty"`
	Cache     string              `json:"cache,omitempty" yaml:"cache,omitempty"` // CSV path
}

// Storage optionally persists the final datasets.
type Storage struct {
	Kind   string   `json:"kind" yaml:"kind"` // sqlite | postgres | mssql
	DSN    string   `json:"dsn" yaml:"dsn"`
	Table  string   `json:"table" yaml:"table"`
	Dedupe []string `json:"dedupe,omitempty" yaml:"dedupe,omitempty"`
}

// Theme carries the chart styling the renderer should use.
type Theme struct {
	Background string   `json:"background" yaml:"background"`
	Primary    string   `json:"primary" yaml:"primary"`
	Font       string   `json:"font" yaml:"font"`
	Accents    []string `json:"accents,omitempty" yaml:"accents,omitempty"`
}

// Load reads a pipeline file (.json/.json5 via JSON5, .yaml/.yml via YAML),
// resolves schema_file relative to it and applies defaults. It does not
// validate; call ValidatePipeline for that.
func Load(path string) (*Pipeline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var p Pipeline
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &p); err != nil {
			return nil, fmt.Errorf("decode config yaml: %w", err)
		}
	default:
		if err := json5.Unmarshal(b, &p); err != nil {
			return nil, fmt.Errorf("decode config json: %w", err)
		}
	}

	if p.Schema == nil && p.SchemaFile != "" {
		sp := p.SchemaFile
		if !filepath.IsAbs(sp) {
			sp = filepath.Join(filepath.Dir(path), sp)
		}
		s, err := extracthtml.LoadSchemaFile(sp)
		if err != nil {
			return nil, err
		}
		p.Schema = s
	}

	p.ApplyDefaults()
	return &p, nil
}

// ApplyDefaults fills unset fields.
func (p *Pipeline) ApplyDefaults() {
	if p.Fetch.Kind == "" {
		p.Fetch.Kind = FetchHTTP
	}
	if p.Fetch.Delay == "" {
		p.Fetch.Delay = "3s"
	}
	if p.Fetch.Cache == "" {
		p.Fetch.Cache = CacheFile
	}
	if p.Fetch.CacheDir == "" {
		p.Fetch.CacheDir = "assets"
	}
	if p.Fetch.CacheSuffix == "" {
		p.Fetch.CacheSuffix = ".html"
	}
	if p.Fetch.RedisPrefix == "" {
		p.Fetch.RedisPrefix = "statscrape:"
	}
	if p.Theme.Background == "" {
		p.Theme.Background = "#15141b"
	}
	if p.Theme.Primary == "" {
		p.Theme.Primary = "#ffffff"
	}
	if p.Theme.Font == "" {
		p.Theme.Font = "sans-serif"
	}
	if len(p.Theme.Accents) == 0 {
		p.Theme.Accents = []string{"#a277ff", "#5fffca"}
	}
	if p.Bounds != nil && p.Bounds.Cache == "" {
		p.Bounds.Cache = filepath.Join(p.Fetch.CacheDir, "data.csv")
	}
}
