package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"statscrape/internal/dataset"
	"statscrape/internal/pipeline"
)

const (
	formatJSON  = "json"
	formatCSV   = "csv"
	formatTable = "table"
)

// writeResult prints a run result. JSON carries everything; CSV prints each
// source's dataset (or record when there is no dataset) separated by a blank
// line; table renders records, datasets, stats and bounds.
func writeResult(w io.Writer, res *pipeline.Result, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(res)

	case formatCSV:
		for i, sr := range res.Sources {
			if i > 0 {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
			}
			ds := sr.Dataset
			if ds == nil {
				ds = sr.Record
			}
			if ds == nil {
				continue
			}
			if err := ds.WriteCSV(w); err != nil {
				return err
			}
		}
		return nil

	case formatTable:
		for _, sr := range res.Sources {
			if sr.Record != nil {
				sr.Record.RenderTable(w, sr.Source.URL)
			}
			if sr.Dataset != nil {
				sr.Dataset.RenderTable(w, fmt.Sprintf("%s (%d rows)", sr.Source.URL, sr.Dataset.Len()))
			}
			if len(sr.Stats) > 0 {
				statsTable(sr.Stats).RenderTable(w, "stats")
			}
		}
		if res.Bounds != nil {
			boundsTable(*res.Bounds).RenderTable(w, "bounds")
		}
		return nil

	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// writeDataset prints a single dataset, as produced by -dir.
func writeDataset(w io.Writer, ds *dataset.Dataset, format, title string) error {
	switch format {
	case formatJSON:
		b, err := ds.MarshalJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	case formatCSV:
		return ds.WriteCSV(w)
	case formatTable:
		ds.RenderTable(w, title)
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func statsTable(stats map[string]dataset.Summary) *dataset.Dataset {
	ds := dataset.MustNew(
		dataset.Field{Name: "field", Kind: dataset.KindString},
		dataset.Field{Name: "count", Kind: dataset.KindInt},
		dataset.Field{Name: "min", Kind: dataset.KindFloat},
		dataset.Field{Name: "max", Kind: dataset.KindFloat},
		dataset.Field{Name: "mean", Kind: dataset.KindFloat},
	)
	names := make([]string, 0, len(stats))
	for n := range stats {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		s := stats[n]
		_ = ds.Append(n, s.Count, s.Min, s.Max, s.Mean)
	}
	return ds
}

func boundsTable(b dataset.Bounds) *dataset.Dataset {
	ds := dataset.MustNew(
		dataset.Field{Name: "param", Kind: dataset.KindInt},
		dataset.Field{Name: "min", Kind: dataset.KindFloat},
		dataset.Field{Name: "max", Kind: dataset.KindFloat},
	)
	for i := range b.Min {
		_ = ds.Append(i, b.Min[i], b.Max[i])
	}
	return ds
}
