package extracthtml

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"statscrape/internal/dataset"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("statscrape/extracthtml")

// Options tune an extraction run.
type Options struct {
	// Now is the reference time for years_since conversions. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Parse builds a navigable tree from raw markup.
func Parse(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// compiledField is a FieldRule with its selector and regex resolved once per run.
type compiledField struct {
	rule FieldRule
	sel  string // "" means the root element itself
	re   *regexp.Regexp
}

func compileFields(rules []FieldRule) ([]compiledField, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("schema has no fields")
	}
	seen := make(map[string]bool, len(rules))
	out := make([]compiledField, len(rules))
	for i, r := range rules {
		if strings.TrimSpace(r.Name) == "" {
			return nil, fmt.Errorf("field %d: empty name", i)
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("field %q: duplicate name", r.Name)
		}
		seen[r.Name] = true

		switch r.Extract {
		case "", ExtractText, ExtractOwnText:
		case ExtractAttr:
			if r.Attr == "" {
				return nil, fmt.Errorf("field %q: extract=attr requires attr", r.Name)
			}
		default:
			return nil, fmt.Errorf("field %q: unknown extract mode %q", r.Name, r.Extract)
		}

		switch r.Type {
		case "", TypeString, TypeInt, TypeFloat:
		case TypeYearsSince:
			if r.Layout == "" {
				return nil, fmt.Errorf("field %q: years_since requires layout", r.Name)
			}
		default:
			return nil, fmt.Errorf("field %q: unknown type %q", r.Name, r.Type)
		}

		if r.Optional && r.Kind() != dataset.KindString {
			return nil, fmt.Errorf("field %q: only string fields may be optional", r.Name)
		}
		if len(r.Sentinels) > 0 && r.Kind() == dataset.KindString {
			return nil, fmt.Errorf("field %q: sentinels require a numeric type", r.Name)
		}

		cf := compiledField{rule: r}
		if !r.Locate.IsZero() {
			sel, err := CompileLocator(r.Locate)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", r.Name, err)
			}
			cf.sel = sel
		}
		if strings.TrimSpace(r.Match) != "" {
			re, err := regexp.Compile(r.Match)
			if err != nil {
				return nil, fmt.Errorf("field %q: invalid match regex: %w", r.Name, err)
			}
			cf.re = re
		}
		out[i] = cf
	}
	return out, nil
}

// locate returns the raw text for the field under root. ok=false means the
// field is missing: no element, no attribute, regex miss, or an empty value
// when SkipEmpty is set.
func (f compiledField) locate(root *goquery.Selection) (string, bool) {
	sel := root
	if f.sel != "" {
		sel = findAll(root, f.rule.Locate, f.sel).First()
	}
	if sel.Length() == 0 {
		return "", false
	}

	var v string
	switch f.rule.Extract {
	case ExtractOwnText:
		v = ownText(sel)
	case ExtractAttr:
		a, ok := sel.Attr(f.rule.Attr)
		if !ok {
			return "", false
		}
		v = a
	default:
		v = sel.Text()
	}

	if f.re != nil {
		m := f.re.FindStringSubmatch(v)
		if m == nil {
			return "", false
		}
		if len(m) > 1 {
			v = m[1]
		} else {
			v = m[0]
		}
	}

	if f.rule.SkipEmpty && NormalizeText(v) == "" {
		return "", false
	}
	return v, true
}

// ownText concatenates the text nodes that are direct children of the first
// element in sel, ignoring nested elements.
func ownText(sel *goquery.Selection) string {
	if len(sel.Nodes) == 0 {
		return ""
	}
	var b strings.Builder
	for c := sel.Nodes[0].FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// ExtractDataset applies schema to doc and returns one row per row element
// that yields every required field.
//
// Processing happens in two passes per row: all fields are located first, and
// a row with any missing required field is dropped before conversion runs.
// Conversion failures on the surviving rows are returned as *ConversionError.
func ExtractDataset(ctx context.Context, doc *goquery.Document, schema Schema, opts Options) (ds *dataset.Dataset, err error) {
	_, span := tracer.Start(ctx, "extracthtml.ExtractDataset")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("rows", ds.Len()))
		}
		span.End()
	}()

	fields, err := compileFields(schema.Fields)
	if err != nil {
		return nil, err
	}
	if schema.Rows.IsZero() {
		return nil, fmt.Errorf("schema has no row locator")
	}
	rowSel, err := CompileLocator(schema.Rows)
	if err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	relabel, err := relabelIndex(schema)
	if err != nil {
		return nil, err
	}

	container := doc.Selection
	if !schema.Container.IsZero() {
		csel, err := CompileLocator(schema.Container)
		if err != nil {
			return nil, fmt.Errorf("container: %w", err)
		}
		container = findAll(doc.Selection, schema.Container, csel).First()
		if container.Length() == 0 {
			return nil, &NotFoundError{What: "container", Selector: csel}
		}
	}

	exclude := make(map[string]bool, len(schema.ExcludeRows))
	for _, s := range schema.ExcludeRows {
		exclude[NormalizeText(s)] = true
	}

	out, err := dataset.New(DatasetFields(schema.Fields))
	if err != nil {
		return nil, err
	}
	now := opts.now()

	rows := findAll(container, schema.Rows, rowSel)
	texts := make([]string, len(fields))
	for i := 0; i < rows.Length(); i++ {
		row := rows.Eq(i)
		if len(exclude) > 0 && rowExcluded(row, exclude) {
			continue
		}

		complete := true
		for j, f := range fields {
			v, ok := f.locate(row)
			if !ok {
				if f.rule.Optional {
					texts[j] = ""
					continue
				}
				complete = false
				break
			}
			texts[j] = v
		}
		if !complete {
			continue
		}

		values := make([]any, len(fields))
		for j, f := range fields {
			v, err := Convert(texts[j], f.rule, now)
			if err != nil {
				return nil, &ConversionError{Field: f.rule.Name, Row: i, Text: texts[j], Type: typeName(f.rule), Err: err}
			}
			if s, ok := v.(string); ok {
				if to, hit := relabel[relabelKey{f.rule.Name, s}]; hit {
					v = to
				}
			}
			values[j] = v
		}
		if err := out.Append(values...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ExtractRecord evaluates rules once against the document root and returns a
// single-row dataset. Unlike ExtractDataset a missing required field is an
// error, since there is no other row to fall back on.
func ExtractRecord(ctx context.Context, doc *goquery.Document, rules []FieldRule, opts Options) (ds *dataset.Dataset, err error) {
	_, span := tracer.Start(ctx, "extracthtml.ExtractRecord")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	fields, err := compileFields(rules)
	if err != nil {
		return nil, err
	}
	now := opts.now()

	values := make([]any, len(fields))
	for j, f := range fields {
		text, ok := f.locate(doc.Selection)
		if !ok {
			if !f.rule.Optional {
				return nil, &NotFoundError{What: "field " + f.rule.Name, Selector: f.sel}
			}
			text = ""
		}
		v, err := Convert(text, f.rule, now)
		if err != nil {
			return nil, &ConversionError{Field: f.rule.Name, Row: -1, Text: text, Type: typeName(f.rule), Err: err}
		}
		values[j] = v
	}

	out, err := dataset.New(DatasetFields(rules))
	if err != nil {
		return nil, err
	}
	if err := out.Append(values...); err != nil {
		return nil, err
	}
	return out, nil
}

type relabelKey struct{ field, from string }

func relabelIndex(schema Schema) (map[relabelKey]string, error) {
	if len(schema.Relabel) == 0 {
		return nil, nil
	}
	kinds := make(map[string]dataset.Kind, len(schema.Fields))
	for _, f := range schema.Fields {
		kinds[f.Name] = f.Kind()
	}
	out := make(map[relabelKey]string, len(schema.Relabel))
	for _, r := range schema.Relabel {
		k, ok := kinds[r.Field]
		if !ok {
			return nil, fmt.Errorf("relabel: unknown field %q", r.Field)
		}
		if k != dataset.KindString {
			return nil, fmt.Errorf("relabel: field %q is not a string field", r.Field)
		}
		out[relabelKey{r.Field, r.From}] = r.To
	}
	return out, nil
}

// rowExcluded reports whether any direct cell of row has text in exclude.
func rowExcluded(row *goquery.Selection, exclude map[string]bool) bool {
	hit := false
	row.Children().EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		if exclude[NormalizeText(cell.Text())] {
			hit = true
			return false
		}
		return true
	})
	return hit
}

func typeName(r FieldRule) string {
	if r.Type == "" {
		return TypeString
	}
	return r.Type
}
