package extracthtml

import (
	"bytes"
	"strings"
	"testing"
)

// TestDebugPrintSelector_TextOnly verifies "-text" debug mode prints trimmed text
// and adds a blank line between matches.
func TestDebugPrintSelector_TextOnly(t *testing.T) {
	t.Parallel()

	page := []byte(`<div class="x">  A  </div><div class="x">B&nbsp;</div>`)
	var buf bytes.Buffer

	if err := DebugPrintSelector(&buf, page, "div.x", true); err != nil {
		t.Fatalf("DebugPrintSelector: %v", err)
	}

	want := "A\n\nB\n\n"
	if buf.String() != want {
		t.Fatalf("unexpected output:\nwant=%q\ngot=%q", want, buf.String())
	}
}

// TestDebugPrintSelector_OuterHTML verifies the non-text mode prints outer HTML.
func TestDebugPrintSelector_OuterHTML(t *testing.T) {
	t.Parallel()

	page := []byte(`<div id="x"><span>Hi</span></div>`)
	var buf bytes.Buffer

	if err := DebugPrintSelector(&buf, page, "div#x", false); err != nil {
		t.Fatalf("DebugPrintSelector: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `<div id="x">`) || !strings.Contains(out, `<span>Hi</span>`) {
		t.Fatalf("unexpected outer html output: %q", out)
	}
	if !strings.HasSuffix(out, "\n\n") {
		t.Fatalf("expected trailing blank line, got %q", out)
	}
}

// TestDumpTables lists ids, classes, row counts and headers.
func TestDumpTables(t *testing.T) {
	t.Parallel()

	page := []byte(`
		<table id="stats_standard" class="stats_table  sortable">
			<thead><tr><th>Squad</th><th>GF</th></tr></thead>
			<tbody><tr><td>A</td><td>1</td></tr><tr><td>B</td><td>2</td></tr></tbody>
		</table>
		<table class="items"><tr><td>x</td></tr></table>`)

	var buf bytes.Buffer
	if err := DumpTables(&buf, page); err != nil {
		t.Fatalf("DumpTables: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		`table[0] id="stats_standard" class="stats_table sortable" rows=2`,
		`headers: Squad | GF`,
		`table[1] id="" class="items" rows=1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

// TestDumpTables_None reports an explicit message for table-free pages.
func TestDumpTables_None(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := DumpTables(&buf, []byte(`<p>nothing</p>`)); err != nil {
		t.Fatalf("DumpTables: %v", err)
	}
	if buf.String() != "no tables\n" {
		t.Fatalf("got %q", buf.String())
	}
}
