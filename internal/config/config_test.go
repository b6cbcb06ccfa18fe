package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"statscrape/internal/dataset"
	"statscrape/internal/extracthtml"
	"statscrape/internal/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func validPipeline() Pipeline {
	p := Pipeline{
		Job:     "squad",
		Sources: []source.Source{{URL: "https://www.transfermarkt.com/fc-barcelona/leistungsdaten/verein/131"}},
		Schema: &extracthtml.Schema{
			Container: extracthtml.Locator{Selector: "table.items > tbody"},
			Rows:      extracthtml.Locator{Tag: "tr", Direct: true},
			Fields: []extracthtml.FieldRule{
				{Name: "name", Locate: extracthtml.Locator{Selector: "span.hide-for-small a"}},
				{Name: "minutes", Locate: extracthtml.Locator{Selector: "td.rechts"}, Type: extracthtml.TypeInt},
			},
		},
		Filters: []dataset.FilterSpec{{Field: "minutes", Op: dataset.OpNonZero}},
		Stats:   []string{"minutes"},
	}
	p.ApplyDefaults()
	return p
}

// TestLoad_JSON5Defaults verifies a minimal JSON5 file picks up defaults.
func TestLoad_JSON5Defaults(t *testing.T) {
	t.Parallel()

	p := write(t, t.TempDir(), "squad.json5", `{
		job: "squad",
		sources: [{url: "https://example.com/squad"}],
		schema: {
			rows: {tag: "tr"},
			fields: [{name: "name", locate: {tag: "td"}}],
		},
		bounds: {link_field: "name", values: {selector: "td"}},
	}`)

	got, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, FetchHTTP, got.Fetch.Kind)
	assert.Equal(t, CacheFile, got.Fetch.Cache)
	assert.Equal(t, "assets", got.Fetch.CacheDir)
	assert.Equal(t, ".html", got.Fetch.CacheSuffix)
	assert.Equal(t, filepath.Join("assets", "data.csv"), got.Bounds.Cache)
	assert.Equal(t, Theme{Background: "#15141b", Primary: "#ffffff", Font: "sans-serif", Accents: []string{"#a277ff", "#5fffca"}}, got.Theme)

	d, err := got.Fetch.DelayDuration()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, d)

	to, err := got.Fetch.TimeoutDuration()
	require.NoError(t, err)
	assert.Zero(t, to, "no timeout unless configured")

	assert.Empty(t, ValidatePipeline(*got))
}

// TestLoad_YAMLWithSchemaFile verifies schema_file resolves next to the config.
func TestLoad_YAMLWithSchemaFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, "league.schema.yaml", `
container: {selector: "table#results2022-2023121_overall tbody"}
rows: {tag: tr}
fields:
  - {name: team, locate: {tag: td, attrs: {data-stat: team}}}
  - {name: goals_for, locate: {tag: td, attrs: {data-stat: goals_for}}, type: int}
`)
	p := write(t, dir, "league.yaml", `
job: laliga
sources:
  - url: https://fbref.com/en/comps/12/2022-2023/2022-2023-La-Liga-Stats
fetch:
  delay: 1s
  timeout: 30s
schema_file: league.schema.yaml
stats: [goals_for]
`)

	got, err := Load(p)
	require.NoError(t, err)
	require.NotNil(t, got.Schema)
	assert.Len(t, got.Schema.Fields, 2)

	to, err := got.Fetch.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, to)
	assert.False(t, HasErrors(ValidatePipeline(*got)))
}

// TestLoad_Errors covers unreadable and undecodable files.
func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	_, err = Load(write(t, dir, "broken.yaml", "job: [unclosed"))
	assert.Error(t, err)

	_, err = Load(write(t, dir, "badschema.json", `{"schema_file": "nope.json"}`))
	assert.Error(t, err)
}

// TestValidatePipeline_Valid verifies a well-formed pipeline has no findings.
func TestValidatePipeline_Valid(t *testing.T) {
	t.Parallel()

	assert.Empty(t, ValidatePipeline(validPipeline()))
}

// TestValidatePipeline_Issues checks each rule reports at the right path.
func TestValidatePipeline_Issues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(p *Pipeline)
		path     string
		severity Severity
	}{
		{"no_job", func(p *Pipeline) { p.Job = "" }, "job", SeverityWarning},
		{"no_sources", func(p *Pipeline) { p.Sources = nil }, "sources", SeverityError},
		{"relative_url", func(p *Pipeline) { p.Sources[0].URL = "/squad" }, "sources[0].url", SeverityError},
		{"fetch_kind", func(p *Pipeline) { p.Fetch.Kind = "ftp" }, "fetch.kind", SeverityError},
		{"redis_without_url", func(p *Pipeline) { p.Fetch.Cache = CacheRedis }, "fetch.redis_url", SeverityError},
		{"bad_delay", func(p *Pipeline) { p.Fetch.Delay = "soon" }, "fetch.delay", SeverityError},
		{"no_schema", func(p *Pipeline) { p.Schema = nil; p.Filters = nil; p.Stats = nil }, "schema", SeverityError},
		{"bad_schema", func(p *Pipeline) { p.Schema.Rows = extracthtml.Locator{} }, "schema", SeverityError},
		{"bad_record", func(p *Pipeline) { p.Record = []extracthtml.FieldRule{{Name: ""}} }, "record", SeverityError},
		{"filter_string", func(p *Pipeline) { p.Filters[0].Field = "name" }, "filters[0]", SeverityError},
		{"stats_unknown", func(p *Pipeline) { p.Stats = []string{"age"} }, "stats[0]", SeverityError},
		{"stats_string", func(p *Pipeline) { p.Stats = []string{"name"} }, "stats[0]", SeverityError},
		{"bounds_source", func(p *Pipeline) {
			p.Bounds = &Bounds{Source: 3, LinkField: "name", Values: extracthtml.Locator{Tag: "td"}, Cache: "x.csv"}
		}, "bounds.source", SeverityError},
		{"bounds_link_int", func(p *Pipeline) {
			p.Bounds = &Bounds{LinkField: "minutes", Values: extracthtml.Locator{Tag: "td"}, Cache: "x.csv"}
		}, "bounds.link_field", SeverityError},
		{"bounds_container", func(p *Pipeline) {
			p.Bounds = &Bounds{LinkField: "name", Container: extracthtml.Locator{Tag: "tbody", Present: []string{"data stat"}}, Values: extracthtml.Locator{Tag: "td"}, Cache: "x.csv"}
		}, "bounds.container", SeverityError},
		{"bounds_no_cache", func(p *Pipeline) {
			p.Bounds = &Bounds{LinkField: "name", Values: extracthtml.Locator{Tag: "td"}}
		}, "bounds.cache", SeverityWarning},
		{"storage_kind", func(p *Pipeline) { p.Storage = &Storage{Kind: "oracle", DSN: "x", Table: "t"} }, "storage.kind", SeverityError},
		{"storage_dedupe", func(p *Pipeline) {
			p.Storage = &Storage{Kind: "sqlite", DSN: "x.db", Table: "t", Dedupe: []string{"nope"}}
		}, "storage.dedupe[0]", SeverityError},
		{"theme_color", func(p *Pipeline) { p.Theme.Accents = []string{"purple"} }, "theme.accents[0]", SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPipeline()
			tt.mutate(&p)

			issues := ValidatePipeline(p)
			var found *Issue
			for i := range issues {
				if issues[i].Path == tt.path {
					found = &issues[i]
					break
				}
			}
			require.NotNil(t, found, "no issue at %s; got %v", tt.path, issues)
			assert.Equal(t, tt.severity, found.Severity)
		})
	}
}

// TestShippedConfigs loads every pipeline under configs/ and expects no
// validation issues at all.
func TestShippedConfigs(t *testing.T) {
	t.Parallel()

	paths, err := filepath.Glob(filepath.Join("..", "..", "configs", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			p, err := Load(path)
			require.NoError(t, err)
			assert.Empty(t, ValidatePipeline(*p))
		})
	}
}

// TestScoutComparison_RecordScopedToMeta reads the player's age from the
// profile block even when another data-birth span precedes it.
func TestScoutComparison_RecordScopedToMeta(t *testing.T) {
	t.Parallel()

	p, err := Load(filepath.Join("..", "..", "configs", "scout_comparison.yaml"))
	require.NoError(t, err)

	const page = `<html><body>
<div class="teammate"><span>Pedri</span><span data-birth="2002-11-25">November 25, 2002</span></div>
<div id="meta"><span>Sergio Busquets</span><span data-birth="1988-07-16">July 16, 1988</span></div>
</body></html>`
	doc, err := extracthtml.Parse([]byte(page))
	require.NoError(t, err)

	now := func() time.Time { return time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC) }
	rec, err := extracthtml.ExtractRecord(context.Background(), doc, p.Record, extracthtml.Options{Now: now})
	require.NoError(t, err)
	assert.Equal(t, "Sergio Busquets", rec.String(0, "player"))
	assert.Equal(t, int64(35), rec.Int(0, "age"))
}
