package extracthtml

import (
	"context"
	"errors"
	"testing"
	"time"

	"statscrape/internal/dataset"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
)

const squadPage = `
<table class="items"><tbody>
	<tr>
		<td><span class="hide-for-small"><a href="/alpha">Alpha</a></span></td>
		<td class="rechts">1.234'</td>
	</tr>
	<tr>
		<td><span class="hide-for-small"><a href="/beta">Beta</a></span></td>
		<td colspan="10">Not used during this season</td>
	</tr>
	<tr>
		<td>staff row without a player link</td>
		<td class="rechts">90'</td>
	</tr>
</tbody></table>`

func squadSchema() Schema {
	return Schema{
		Container: Locator{Selector: "table.items > tbody"},
		Rows:      Locator{Tag: "tr", Direct: true},
		Fields: []FieldRule{
			{Name: "name", Locate: Locator{Selector: "span.hide-for-small a"}},
			{
				Name:      "minutes",
				Locate:    Locator{Selector: `td.rechts, td[colspan="10"]`},
				Type:      TypeInt,
				Strip:     []string{"'", "."},
				Sentinels: []Sentinel{{Text: "Not used during this season", Value: 0}},
			},
		},
	}
}

func mustParse(t *testing.T, page string) *goquery.Document {
	t.Helper()
	doc, err := Parse([]byte(page))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func mustJSON(t *testing.T, ds *dataset.Dataset) string {
	t.Helper()
	b, err := ds.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	return string(b)
}

// TestExtractDataset_SentinelAndFilter is the canonical squad example: the
// sentinel row coerces to 0, the row without a name link is dropped, and a
// caller-side nonzero filter leaves only Alpha.
func TestExtractDataset_SentinelAndFilter(t *testing.T) {
	t.Parallel()

	ds, err := ExtractDataset(context.Background(), mustParse(t, squadPage), squadSchema(), Options{})
	if err != nil {
		t.Fatalf("ExtractDataset: %v", err)
	}

	want := `[{"name":"Alpha","minutes":1234},{"name":"Beta","minutes":0}]`
	if got := mustJSON(t, ds); got != want {
		t.Fatalf("dataset mismatch:\nwant=%s\ngot =%s", want, got)
	}

	played, err := dataset.ApplyFilters(ds, []dataset.FilterSpec{{Field: "minutes", Op: dataset.OpNonZero}})
	if err != nil {
		t.Fatalf("ApplyFilters: %v", err)
	}
	if played.Len() != 1 || played.String(0, "name") != "Alpha" {
		t.Fatalf("expected only Alpha, got %s", mustJSON(t, played))
	}
}

// TestExtractDataset_Deterministic verifies re-running over the same cached
// bytes yields a byte-identical dataset.
func TestExtractDataset_Deterministic(t *testing.T) {
	t.Parallel()

	var prev string
	for i := 0; i < 3; i++ {
		ds, err := ExtractDataset(context.Background(), mustParse(t, squadPage), squadSchema(), Options{})
		if err != nil {
			t.Fatalf("ExtractDataset: %v", err)
		}
		got := mustJSON(t, ds)
		if i > 0 && got != prev {
			t.Fatalf("run %d differs:\n%s\n%s", i, prev, got)
		}
		prev = got
	}
}

// TestExtractDataset_ContainerNotFound verifies markup drift surfaces as
// ErrNotFound naming the selector that failed.
func TestExtractDataset_ContainerNotFound(t *testing.T) {
	t.Parallel()

	s := squadSchema()
	s.Container = Locator{Tag: "table", Attrs: map[string]string{"id": "missing"}}

	_, err := ExtractDataset(context.Background(), mustParse(t, squadPage), s, Options{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Selector != `table[id="missing"]` {
		t.Fatalf("unexpected NotFoundError: %#v", nf)
	}
}

// TestExtractDataset_ConversionError verifies a non-sentinel, non-numeric cell
// fails the run instead of defaulting.
func TestExtractDataset_ConversionError(t *testing.T) {
	t.Parallel()

	page := `<table class="items"><tbody>
		<tr><td><span class="hide-for-small"><a>Alpha</a></span></td><td class="rechts">injured</td></tr>
	</tbody></table>`

	_, err := ExtractDataset(context.Background(), mustParse(t, page), squadSchema(), Options{})
	if !errors.Is(err, ErrConversion) {
		t.Fatalf("expected ErrConversion, got %v", err)
	}
	var ce *ConversionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConversionError, got %T", err)
	}
	if ce.Field != "minutes" || ce.Row != 0 || ce.Text != "injured" || ce.Type != TypeInt {
		t.Fatalf("unexpected conversion error: %+v", ce)
	}
}

// TestExtractDataset_MissingFieldDropsBeforeConversion verifies a row with an
// unconvertible value is still dropped silently if another field is missing.
func TestExtractDataset_MissingFieldDropsBeforeConversion(t *testing.T) {
	t.Parallel()

	page := `<table class="items"><tbody>
		<tr><td>no link</td><td class="rechts">garbage</td></tr>
	</tbody></table>`

	ds, err := ExtractDataset(context.Background(), mustParse(t, page), squadSchema(), Options{})
	if err != nil {
		t.Fatalf("ExtractDataset: %v", err)
	}
	if ds.Len() != 0 {
		t.Fatalf("expected no rows, got %s", mustJSON(t, ds))
	}
}

const scoutPage = `
<table id="scout_summary_MF"><tbody>
	<tr><th data-stat="statistic">Shots Total</th><td data-stat="per90">1.2</td><td data-stat="percentile">40</td></tr>
	<tr><th data-stat="statistic">Pass Completion %</th><td data-stat="per90">85.2%</td><td data-stat="percentile">90</td></tr>
	<tr class="spacer"><th data-stat="statistic"></th><td data-stat="per90"></td><td data-stat="percentile"></td></tr>
	<tr><th data-stat="statistic">Progressive Passes</th><td data-stat="per90" data-endpoint="/x">5.1</td><td data-stat="percentile">70</td></tr>
</tbody></table>`

// TestExtractDataset_ExcludeRelabelOptional covers the scouting-report shape:
// excluded statistics, spacer rows, a relabelled value and an optional attribute.
func TestExtractDataset_ExcludeRelabelOptional(t *testing.T) {
	t.Parallel()

	s := Schema{
		Container: Locator{Tag: "table", Attrs: map[string]string{"id": "scout_summary_MF"}},
		Rows:      Locator{Selector: "tbody > tr"},
		Fields: []FieldRule{
			{Name: "statistic", Locate: Locator{Tag: "th", Attrs: map[string]string{"data-stat": "statistic"}}, SkipEmpty: true},
			{Name: "per90", Locate: Locator{Tag: "td", Attrs: map[string]string{"data-stat": "per90"}}, Type: TypeFloat, Strip: []string{"%"}},
			{Name: "percentile", Locate: Locator{Tag: "td", Attrs: map[string]string{"data-stat": "percentile"}}, Type: TypeInt},
			{Name: "endpoint", Locate: Locator{Tag: "td", Attrs: map[string]string{"data-stat": "per90"}}, Extract: ExtractAttr, Attr: "data-endpoint", Optional: true},
		},
		ExcludeRows: []string{"Shots Total"},
		Relabel:     []Relabel{{Field: "statistic", From: "Pass Completion %", To: " Pass Completion % "}},
	}

	ds, err := ExtractDataset(context.Background(), mustParse(t, scoutPage), s, Options{})
	if err != nil {
		t.Fatalf("ExtractDataset: %v", err)
	}

	want := `[{"statistic":" Pass Completion % ","per90":85.2,"percentile":90,"endpoint":""},` +
		`{"statistic":"Progressive Passes","per90":5.1,"percentile":70,"endpoint":"/x"}]`
	if got := mustJSON(t, ds); got != want {
		t.Fatalf("dataset mismatch:\nwant=%s\ngot =%s", want, got)
	}
}

// TestExtractDataset_MatchAndOwnText covers regex capture and own-text mode.
func TestExtractDataset_MatchAndOwnText(t *testing.T) {
	t.Parallel()

	page := `<ul>
		<li><b>Alpha <i>(c)</i></b><em>Age: 21 (born 2003)</em></li>
		<li><b>Beta</b><em>Age: unknown</em></li>
	</ul>`

	s := Schema{
		Container: Locator{Tag: "ul"},
		Rows:      Locator{Tag: "li", Direct: true},
		Fields: []FieldRule{
			{Name: "name", Locate: Locator{Tag: "b"}, Extract: ExtractOwnText},
			{Name: "age", Locate: Locator{Tag: "em"}, Match: `Age: (\d+)`, Type: TypeInt},
		},
	}

	ds, err := ExtractDataset(context.Background(), mustParse(t, page), s, Options{})
	if err != nil {
		t.Fatalf("ExtractDataset: %v", err)
	}
	if got, want := mustJSON(t, ds), `[{"name":"Alpha","age":21}]`; got != want {
		t.Fatalf("want %s got %s", want, got)
	}
}

// TestExtractDataset_RejectsBadRules verifies schema errors are reported before
// any row is touched.
func TestExtractDataset_RejectsBadRules(t *testing.T) {
	t.Parallel()

	base := squadSchema()
	tests := []struct {
		name   string
		mutate func(s *Schema)
	}{
		{"no_fields", func(s *Schema) { s.Fields = nil }},
		{"no_rows", func(s *Schema) { s.Rows = Locator{} }},
		{"dup_field", func(s *Schema) { s.Fields = append(s.Fields, s.Fields[0]) }},
		{"attr_without_name", func(s *Schema) { s.Fields[0].Extract = ExtractAttr }},
		{"bad_regex", func(s *Schema) { s.Fields[0].Match = "(" }},
		{"optional_int", func(s *Schema) { s.Fields[1].Optional = true }},
		{"unknown_type", func(s *Schema) { s.Fields[1].Type = "decimal" }},
		{"relabel_unknown", func(s *Schema) { s.Relabel = []Relabel{{Field: "nope"}} }},
		{"relabel_int", func(s *Schema) { s.Relabel = []Relabel{{Field: "minutes"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			s.Fields = append([]FieldRule(nil), base.Fields...)
			tt.mutate(&s)
			if _, err := ExtractDataset(context.Background(), mustParse(t, squadPage), s, Options{}); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

const metaPage = `
<div id="meta">
	<h1><span>Pedri</span></h1>
	<p><span id="necro-birth" data-birth="2002-11-25">November 25, 2002</span></p>
</div>`

func metaRules() []FieldRule {
	return []FieldRule{
		{Name: "name", Locate: Locator{Selector: "div#meta span"}},
		{Name: "age", Locate: Locator{Tag: "span", Present: []string{"data-birth"}}, Type: TypeYearsSince, Layout: "January 2, 2006"},
	}
}

// TestExtractRecord verifies single-object mode against the document root.
func TestExtractRecord(t *testing.T) {
	t.Parallel()

	opts := Options{Now: func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }}
	ds, err := ExtractRecord(context.Background(), mustParse(t, metaPage), metaRules(), opts)
	if err != nil {
		t.Fatalf("ExtractRecord: %v", err)
	}

	want := dataset.Row{"Pedri", int64(22)}
	if diff := cmp.Diff(want, ds.Row(0)); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
}

// TestExtractRecord_Missing verifies a missing record field is NotFound, not a
// silently empty row.
func TestExtractRecord_Missing(t *testing.T) {
	t.Parallel()

	_, err := ExtractRecord(context.Background(), mustParse(t, `<div id="meta"></div>`), metaRules(), Options{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
