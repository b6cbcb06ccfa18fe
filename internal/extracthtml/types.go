package extracthtml

import "statscrape/internal/dataset"

// Locator finds an element either by raw CSS selector or by tag name plus
// attribute constraints. Selector wins when both are set.
//
// Attrs["class"] matches a single class token, so {"class": "rechts"} also
// matches class="rechts hauptlink". Use a Selector when the class list must
// be exact.
type Locator struct {
	Selector string            `json:"selector,omitempty" yaml:"selector,omitempty"`
	Tag      string            `json:"tag,omitempty" yaml:"tag,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty" yaml:"attrs,omitempty"`     // "class" matches one class token, others exact
	Present  []string          `json:"present,omitempty" yaml:"present,omitempty"` // attribute must exist
	Absent   []string          `json:"absent,omitempty" yaml:"absent,omitempty"`   // attribute must not exist
	Direct   bool              `json:"direct,omitempty" yaml:"direct,omitempty"`   // only direct children of the root
}

// IsZero reports whether no constraint is set.
func (l Locator) IsZero() bool {
	return l.Selector == "" && l.Tag == "" && len(l.Attrs) == 0 && len(l.Present) == 0 && len(l.Absent) == 0
}

// Extraction modes for FieldRule.Extract.
const (
	ExtractText    = "text"     // full text content (default)
	ExtractOwnText = "own_text" // text nodes directly under the element
	ExtractAttr    = "attr"     // attribute value, Attr must be set
)

// Conversion types for FieldRule.Type.
const (
	TypeString     = "string"
	TypeInt        = "int"
	TypeFloat      = "float"
	TypeYearsSince = "years_since" // whole years between a parsed date and now
)

// Sentinel maps a literal cell text to a fixed numeric value.
type Sentinel struct {
	Text  string  `json:"text" yaml:"text"`
	Value float64 `json:"value" yaml:"value"`
}

// FieldRule is one extraction rule: where the value lives and how to coerce it.
type FieldRule struct {
	Name      string     `json:"name" yaml:"name"`
	Locate    Locator    `json:"locate" yaml:"locate"`
	Extract   string     `json:"extract,omitempty" yaml:"extract,omitempty"`
	Attr      string     `json:"attr,omitempty" yaml:"attr,omitempty"`
	Match     string     `json:"match,omitempty" yaml:"match,omitempty"` // optional regex; group 1 if present
	Type      string     `json:"type,omitempty" yaml:"type,omitempty"`
	Strip     []string   `json:"strip,omitempty" yaml:"strip,omitempty"`
	Sentinels []Sentinel `json:"sentinels,omitempty" yaml:"sentinels,omitempty"`
	Layout    string     `json:"layout,omitempty" yaml:"layout,omitempty"` // time layout for years_since
	SkipEmpty bool       `json:"skip_empty,omitempty" yaml:"skip_empty,omitempty"`
	Optional  bool       `json:"optional,omitempty" yaml:"optional,omitempty"` // string fields only; missing => ""
}

// Kind returns the dataset kind produced by the rule's conversion.
func (r FieldRule) Kind() dataset.Kind {
	switch r.Type {
	case TypeInt, TypeYearsSince:
		return dataset.KindInt
	case TypeFloat:
		return dataset.KindFloat
	default:
		return dataset.KindString
	}
}

// Relabel replaces an exact string value of a field after extraction.
type Relabel struct {
	Field string `json:"field" yaml:"field"`
	From  string `json:"from" yaml:"from"`
	To    string `json:"to" yaml:"to"`
}

// Schema describes a table-like fragment: where it is, what its rows are and
// which fields every row must yield.
type Schema struct {
	Container   Locator     `json:"container" yaml:"container"`
	Rows        Locator     `json:"rows" yaml:"rows"`
	Fields      []FieldRule `json:"fields" yaml:"fields"`
	ExcludeRows []string    `json:"exclude_rows,omitempty" yaml:"exclude_rows,omitempty"`
	Relabel     []Relabel   `json:"relabel,omitempty" yaml:"relabel,omitempty"`
}

// DatasetFields returns the dataset schema implied by the rules.
func DatasetFields(rules []FieldRule) []dataset.Field {
	out := make([]dataset.Field, len(rules))
	for i, r := range rules {
		out[i] = dataset.Field{Name: r.Name, Kind: r.Kind()}
	}
	return out
}
