package dataset

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func squad(t *testing.T) *Dataset {
	t.Helper()
	ds := MustNew(Field{Name: "name", Kind: KindString}, Field{Name: "minutes", Kind: KindInt})
	for _, r := range [][]any{{"Alpha", int64(1234)}, {"Beta", int64(0)}, {"Gamma", 90}} {
		if err := ds.Append(r...); err != nil {
			t.Fatalf("Append(%v): %v", r, err)
		}
	}
	return ds
}

// TestNew_RejectsBadSchemas covers the schema invariants enforced up front.
func TestNew_RejectsBadSchemas(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		fields []Field
	}{
		{"empty_name", []Field{{Name: "", Kind: KindInt}}},
		{"bad_kind", []Field{{Name: "x", Kind: "date"}}},
		{"duplicate", []Field{{Name: "x", Kind: KindInt}, {Name: "x", Kind: KindFloat}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.fields); err == nil {
				t.Fatalf("expected error for %#v", tt.fields)
			}
		})
	}
}

// TestAppend_TypeChecks verifies rows are never stored with a wrong type.
func TestAppend_TypeChecks(t *testing.T) {
	t.Parallel()

	ds := MustNew(Field{Name: "name", Kind: KindString}, Field{Name: "pct", Kind: KindFloat})

	if err := ds.Append("x", "12%"); err == nil {
		t.Fatalf("expected type error for string in float field")
	}
	if err := ds.Append("x"); err == nil {
		t.Fatalf("expected arity error")
	}
	// int64 widens into float fields.
	if err := ds.Append("x", int64(3)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if got := ds.Float(0, "pct"); got != 3 {
		t.Fatalf("pct: want 3 got %v", got)
	}
	if ds.Len() != 1 {
		t.Fatalf("want 1 row got %d", ds.Len())
	}
}

// TestFilter_NonZeroMinutes mirrors the caller-side "drop unused players" step.
func TestFilter_NonZeroMinutes(t *testing.T) {
	t.Parallel()

	ds := squad(t)
	out, err := FilterSpec{Field: "minutes", Op: OpNonZero}.Apply(ds)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	names, _ := out.Strings("name")
	if diff := cmp.Diff([]string{"Alpha", "Gamma"}, names); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	// The source dataset is untouched.
	if ds.Len() != 3 {
		t.Fatalf("source dataset mutated: %d rows", ds.Len())
	}
}

// TestFilter_IncludeExclude covers the text-matching operations.
func TestFilter_IncludeExclude(t *testing.T) {
	t.Parallel()

	ds := squad(t)

	ex, err := ApplyFilters(ds, []FilterSpec{{Field: "name", Op: OpExclude, Values: []string{"Beta"}}})
	if err != nil {
		t.Fatalf("exclude: %v", err)
	}
	if ex.Len() != 2 {
		t.Fatalf("exclude: want 2 rows got %d", ex.Len())
	}

	in, err := ApplyFilters(ds, []FilterSpec{{Field: "minutes", Op: OpInclude, Values: []string{"90"}}})
	if err != nil {
		t.Fatalf("include: %v", err)
	}
	if in.Len() != 1 || in.String(0, "name") != "Gamma" {
		t.Fatalf("include: unexpected rows %s", mustJSON(t, in))
	}
}

// TestFilter_Validate rejects specs that cannot apply to the schema.
func TestFilter_Validate(t *testing.T) {
	t.Parallel()

	fields := squad(t).Fields()
	bad := []FilterSpec{
		{Field: "nope", Op: OpNonZero},
		{Field: "name", Op: OpNonZero},
		{Field: "name", Op: OpExclude},
		{Field: "name", Op: "regex", Values: []string{"x"}},
	}
	for _, f := range bad {
		if err := f.Validate(fields); err == nil {
			t.Fatalf("expected error for %#v", f)
		}
	}
}

// TestSummarize verifies min/max/mean and the empty-dataset error.
func TestSummarize(t *testing.T) {
	t.Parallel()

	s, err := squad(t).Summarize("minutes")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	want := Summary{Count: 3, Min: 0, Max: 1234, Mean: 1324.0 / 3}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}

	empty := MustNew(Field{Name: "age", Kind: KindInt})
	if _, err := empty.Summarize("age"); !errors.Is(err, ErrEmpty) {
		t.Fatalf("want ErrEmpty, got %v", err)
	}
	if _, err := squad(t).Summarize("name"); err == nil {
		t.Fatalf("expected error summarizing a string field")
	}
}

// TestMarshalJSON_SchemaOrder verifies keys follow the schema and output is stable.
func TestMarshalJSON_SchemaOrder(t *testing.T) {
	t.Parallel()

	got := mustJSON(t, squad(t))
	want := `[{"name":"Alpha","minutes":1234},{"name":"Beta","minutes":0},{"name":"Gamma","minutes":90}]`
	if got != want {
		t.Fatalf("json:\nwant=%s\ngot =%s", want, got)
	}
	if again := mustJSON(t, squad(t)); again != got {
		t.Fatalf("encoding is not deterministic")
	}

	if empty := mustJSON(t, MustNew(Field{Name: "x", Kind: KindInt})); empty != "[]" {
		t.Fatalf("empty dataset: want [] got %s", empty)
	}
}

// TestWriteCSV checks header and value formatting.
func TestWriteCSV(t *testing.T) {
	t.Parallel()

	ds := MustNew(Field{Name: "stat", Kind: KindString}, Field{Name: "per90", Kind: KindFloat})
	_ = ds.Append("Passes Attempted", 71.25)

	var buf bytes.Buffer
	if err := ds.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	want := "stat,per90\nPasses Attempted,71.25\n"
	if buf.String() != want {
		t.Fatalf("csv:\nwant=%q\ngot =%q", want, buf.String())
	}
}

// TestRenderTable only asserts content; box-drawing style belongs to go-pretty.
func TestRenderTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	squad(t).RenderTable(&buf, "squad")

	out := buf.String()
	for _, s := range []string{"squad", "name", "minutes", "Alpha", "1234"} {
		if !strings.Contains(out, s) {
			t.Fatalf("table output missing %q:\n%s", s, out)
		}
	}
	if strings.Contains(out, "NAME") || strings.Contains(out, "MINUTES") {
		t.Fatalf("headers must keep field name case:\n%s", out)
	}
}

func mustJSON(t *testing.T, ds *Dataset) string {
	t.Helper()
	b, err := ds.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	return string(b)
}
