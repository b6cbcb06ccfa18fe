package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// MarshalJSON encodes the dataset as an array of objects whose keys follow
// schema order, so equal datasets always encode to identical bytes.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('[')
	for i, r := range d.rows {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('{')
		for j, f := range d.fields {
			if j > 0 {
				b.WriteByte(',')
			}
			k, err := json.Marshal(f.Name)
			if err != nil {
				return nil, err
			}
			v, err := json.Marshal(r[j])
			if err != nil {
				return nil, fmt.Errorf("encode %s: %w", f.Name, err)
			}
			b.Write(k)
			b.WriteByte(':')
			b.Write(v)
		}
		b.WriteByte('}')
	}
	b.WriteByte(']')
	return b.Bytes(), nil
}

// WriteCSV writes a header row followed by one record per row.
func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(d.fields))
	for i, f := range d.fields {
		header[i] = f.Name
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	rec := make([]string, len(d.fields))
	for _, r := range d.rows {
		for j, v := range r {
			rec[j] = formatValue(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// RenderTable prints the dataset as a terminal table. Headers are the field
// names exactly as declared.
func (d *Dataset) RenderTable(w io.Writer, title string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	if title != "" {
		t.SetTitle(title)
	}

	header := make(table.Row, len(d.fields))
	for i, f := range d.fields {
		header[i] = f.Name
	}
	t.AppendHeader(header)

	for _, r := range d.rows {
		row := make(table.Row, len(r))
		for j, v := range r {
			row[j] = formatValue(v)
		}
		t.AppendRow(row)
	}

	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	t.Render()
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
