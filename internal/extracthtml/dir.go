package extracthtml

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"statscrape/internal/dataset"
)

// SourceFileField is the extra column ExtractDir appends to every row.
const SourceFileField = "source_file"

// ExtractDir re-runs schema over every cached document in dir whose name ends
// with suffix, in filename order, and concatenates the rows. Each row gains a
// source_file column naming the file it came from.
//
// Any file that fails to read, parse or extract fails the whole call.
func ExtractDir(ctx context.Context, dir, suffix string, schema Schema, opts Options) (*dataset.Dataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, f := range schema.Fields {
		if f.Name == SourceFileField {
			return nil, fmt.Errorf("field name %q is reserved in directory mode", SourceFileField)
		}
	}
	fields := append(DatasetFields(schema.Fields), dataset.Field{Name: SourceFileField, Kind: dataset.KindString})
	out, err := dataset.New(fields)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		doc, err := Parse(b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		ds, err := ExtractDataset(ctx, doc, schema, opts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		for i := 0; i < ds.Len(); i++ {
			if err := out.Append(append(ds.Row(i), e.Name())...); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
