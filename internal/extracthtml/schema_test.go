package extracthtml

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

// TestLoadSchemaFile_JSON5 verifies comments and trailing commas are accepted.
func TestLoadSchemaFile_JSON5(t *testing.T) {
	t.Parallel()

	p := writeFile(t, t.TempDir(), "squad.json5", `{
		// Transfermarkt squad table
		container: {selector: "table.items > tbody"},
		rows: {tag: "tr", direct: true},
		fields: [
			{name: "name", locate: {selector: "span.hide-for-small a"}},
			{name: "minutes", locate: {tag: "td", attrs: {class: "rechts"}}, type: "int", strip: ["'", "."],
			 sentinels: [{text: "Not used during this season", value: 0}]},
		],
	}`)

	s, err := LoadSchemaFile(p)
	if err != nil {
		t.Fatalf("LoadSchemaFile: %v", err)
	}
	if len(s.Fields) != 2 || s.Fields[1].Type != TypeInt || s.Fields[1].Sentinels[0].Text != "Not used during this season" {
		t.Fatalf("unexpected schema: %+v", s)
	}
	if !s.Rows.Direct || s.Fields[1].Locate.Attrs["class"] != "rechts" {
		t.Fatalf("locator not decoded: %+v", s)
	}
}

// TestLoadSchemaFile_YAML verifies the YAML form decodes to the same shape.
func TestLoadSchemaFile_YAML(t *testing.T) {
	t.Parallel()

	p := writeFile(t, t.TempDir(), "league.yaml", `
container: {selector: "table#results tbody"}
rows: {tag: tr}
fields:
  - name: team
    locate: {tag: td, attrs: {data-stat: team}}
  - name: goals_for
    locate: {tag: td, attrs: {data-stat: goals_for}}
    type: int
`)

	s, err := LoadSchemaFile(p)
	if err != nil {
		t.Fatalf("LoadSchemaFile: %v", err)
	}
	if s.Fields[1].Locate.Attrs["data-stat"] != "goals_for" || s.Fields[1].Type != TypeInt {
		t.Fatalf("unexpected schema: %+v", s)
	}
}

// TestLoadSchemaFile_Invalid rejects files that would only fail at run time.
func TestLoadSchemaFile_Invalid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := map[string]string{
		"bad_selector.json": `{"rows": {"selector": "tr"}, "fields": [{"name": "x", "locate": {"selector": "td["}}]}`,
		"no_rows.json":      `{"fields": [{"name": "x", "locate": {"tag": "td"}}]}`,
		"no_fields.yaml":    "rows: {tag: tr}\n",
		"broken.json":       `{"rows": `,
	}
	for name, body := range tests {
		p := writeFile(t, dir, name, body)
		if _, err := LoadSchemaFile(p); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := LoadSchemaFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("missing file: expected error")
	}
}

// TestValidateRules covers record-mode rule lists.
func TestValidateRules(t *testing.T) {
	t.Parallel()

	if err := ValidateRules(metaRules()); err != nil {
		t.Fatalf("ValidateRules: %v", err)
	}
	bad := []FieldRule{{Name: "x", Locate: Locator{Selector: "span[["}}}
	if err := ValidateRules(bad); err == nil {
		t.Fatalf("expected invalid selector error")
	}
}
